// Package domain defines the core types and interfaces for the AR mate
// client. All other packages depend on domain; domain depends on nothing.
package domain

import "fmt"

// AnimationKind is the discrete gesture the avatar is playing.
type AnimationKind int

const (
	AnimationIdle AnimationKind = iota
	AnimationWave
	AnimationNod
	AnimationComfort
)

// String returns the wire name of the animation.
func (a AnimationKind) String() string {
	switch a {
	case AnimationIdle:
		return "idle"
	case AnimationWave:
		return "wave"
	case AnimationNod:
		return "nod"
	case AnimationComfort:
		return "comfort"
	default:
		return fmt.Sprintf("animation(%d)", int(a))
	}
}

// ParseAnimation maps a wire name onto the closed animation set. The
// boolean is false for anything outside the set.
func ParseAnimation(s string) (AnimationKind, bool) {
	switch s {
	case "idle":
		return AnimationIdle, true
	case "wave":
		return AnimationWave, true
	case "nod":
		return AnimationNod, true
	case "comfort":
		return AnimationComfort, true
	default:
		return AnimationIdle, false
	}
}

// EmotionKind is the avatar's facial expression.
type EmotionKind int

const (
	EmotionNeutral EmotionKind = iota
	EmotionHappy
	EmotionSad
	EmotionAngry
)

// String returns the wire name of the emotion.
func (e EmotionKind) String() string {
	switch e {
	case EmotionNeutral:
		return "neutral"
	case EmotionHappy:
		return "happy"
	case EmotionSad:
		return "sad"
	case EmotionAngry:
		return "angry"
	default:
		return fmt.Sprintf("emotion(%d)", int(e))
	}
}

// ParseEmotion maps a wire name onto the closed emotion set. The boolean
// is false for anything outside the set.
func ParseEmotion(s string) (EmotionKind, bool) {
	switch s {
	case "neutral":
		return EmotionNeutral, true
	case "happy":
		return EmotionHappy, true
	case "sad":
		return EmotionSad, true
	case "angry":
		return EmotionAngry, true
	default:
		return EmotionNeutral, false
	}
}

// AvatarState is the discrete pose handed to the renderer each frame.
type AvatarState struct {
	Animation AnimationKind
	Emotion   EmotionKind
}

// RestingState is the state every turn converges back to.
var RestingState = AvatarState{Animation: AnimationIdle, Emotion: EmotionNeutral}

// IsResting reports whether the avatar is idle and neutral.
func (s AvatarState) IsResting() bool { return s == RestingState }

func (s AvatarState) String() string {
	return s.Animation.String() + "/" + s.Emotion.String()
}
