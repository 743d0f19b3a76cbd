package convo

// event is something that can move the machine.
type event int

const (
	// evWakeReady is a wake signal whose backend work (if any) already
	// succeeded.
	evWakeReady event = iota

	// evTranscript is a finished utterance from the capture source.
	evTranscript

	// evFirstAudio fires when the first response sentence starts playing.
	evFirstAudio

	// evPlaybackDone fires when a playback session settles.
	evPlaybackDone

	// evConversationTimeout fires when listening went unanswered.
	evConversationTimeout

	// evIdleTimeout fires when light sleep has lasted long enough.
	evIdleTimeout
)

// effect is a side effect the dispatcher runs after a state write.
type effect int

const (
	fxStartCapture effect = iota
	fxResumeCapture
	fxPauseCapture
	fxStopCapture
	fxArmConversation
	fxArmFollowUp
	fxCancelConversation
	fxArmIdle
	fxCancelIdle
	fxStopTimers
	fxDispatchTurn
	fxNotifySleep
	fxStopBackend
)

// flags is the mutable context a decision may depend on besides the
// state itself.
type flags struct {
	// processing is true while a turn is in flight.
	processing bool

	// pendingDismiss is the one-shot dismissal flag, set at transcript
	// time and consumed when the current response finishes playing.
	pendingDismiss bool

	// turnFailed marks the in-flight turn as failed, routing the
	// machine back to listening instead of applying the policy.
	turnFailed bool

	// questionEnd is true when the response ended with a question mark.
	questionEnd bool
}

// decision is the outcome of one event: the next state and the effects
// to run, in order.
type decision struct {
	next    State
	effects []effect
}

// lightSleepEntry is the effect list shared by every transition into
// light sleep.
func lightSleepEntry() []effect {
	return []effect{fxStopCapture, fxCancelConversation, fxArmIdle, fxNotifySleep}
}

// decide computes the transition for an event. It returns false when
// the event does not apply in the current state, which the dispatcher
// treats as a logged no-op. decide never touches collaborators; the
// dispatcher owns execution.
func decide(ev event, from State, f flags, policy Policy) (decision, bool) {
	switch ev {
	case evWakeReady:
		switch from {
		case StateLightSleep:
			return decision{StateListening, []effect{fxCancelIdle, fxStartCapture, fxArmConversation}}, true
		case StateDeepSleep:
			return decision{StateListening, []effect{fxStartCapture, fxArmConversation}}, true
		}
		// Already active, wake is idempotent.
		return decision{}, false

	case evTranscript:
		if from != StateListening || f.processing {
			return decision{}, false
		}
		return decision{StateProcessing, []effect{fxCancelConversation, fxPauseCapture, fxDispatchTurn}}, true

	case evFirstAudio:
		if from != StateProcessing {
			return decision{}, false
		}
		return decision{StateSpeaking, nil}, true

	case evPlaybackDone:
		// Sessions with no audio settle straight from processing.
		if from != StateSpeaking && from != StateProcessing {
			return decision{}, false
		}
		if f.pendingDismiss {
			return decision{StateLightSleep, lightSleepEntry()}, true
		}
		if f.turnFailed {
			return decision{StateListening, []effect{fxResumeCapture, fxArmConversation}}, true
		}
		switch policy {
		case PolicySingleShot:
			return decision{StateLightSleep, lightSleepEntry()}, true
		case PolicySmart:
			if f.questionEnd {
				return decision{StateListening, []effect{fxResumeCapture, fxArmFollowUp}}, true
			}
			return decision{StateLightSleep, lightSleepEntry()}, true
		default:
			// PolicyConversation, and the fallback for unknown values.
			return decision{StateListening, []effect{fxResumeCapture, fxArmConversation}}, true
		}

	case evConversationTimeout:
		if from != StateListening || f.processing {
			return decision{}, false
		}
		return decision{StateLightSleep, lightSleepEntry()}, true

	case evIdleTimeout:
		if from != StateLightSleep {
			return decision{}, false
		}
		return decision{StateDeepSleep, []effect{fxStopTimers, fxStopBackend}}, true
	}
	return decision{}, false
}
