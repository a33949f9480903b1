// Every user-visible session string lives here.

package session

// ── Failures ─────────────────────────────────────────────────────

func LineMicDenied() string {
	return "Could not access microphone. Please check permissions."
}

func LineUnavailable() string {
	return "Sorry, I couldn't understand that. Please try again."
}

// ── Status line ──────────────────────────────────────────────────

func LineThinking() string {
	return "Thinking..."
}

func LineListening() string {
	return "I'm listening..."
}

// ── Hint line ────────────────────────────────────────────────────

func HintProcessing() string {
	return "Processing..."
}

func HintRecording() string {
	return "Recording..."
}

func HintIdle() string {
	return "Tap to speak"
}
