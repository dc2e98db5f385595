package asr

import "errors"

// ErrFinalised is returned by SendFrame once the session has emitted its
// terminal transcript. The pipeline treats it as the end of the utterance,
// not as a fault.
var ErrFinalised = errors.New("asr: utterance already finalised")
