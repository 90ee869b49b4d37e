//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation
#import <AVFoundation/AVFoundation.h>

int microphoneStatus() {
    AVAuthorizationStatus status = [AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
    return (int)status;
}

void requestMicrophone() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}
*/
import "C"

import "github.com/rs/zerolog"

// MicrophoneStatus returns the AVFoundation authorization status for audio
// capture.
func MicrophoneStatus() Status {
	return Status(C.microphoneStatus())
}

// EnsureMicrophone checks microphone access. When access has never been
// asked for, the system prompt is triggered and ErrMicrophoneDenied is
// returned so the caller can retry once the user has answered.
func EnsureMicrophone(log zerolog.Logger) error {
	status := MicrophoneStatus()
	log.Debug().Stringer("status", status).Msg("Microphone permission")

	switch status {
	case StatusAuthorized:
		return nil
	case StatusNotDetermined:
		log.Warn().Msg("Microphone permission required, requesting access")
		C.requestMicrophone()
	default:
		log.Warn().Msg("Microphone access denied. Enable it in System Settings > Privacy & Security > Microphone")
	}
	return ErrMicrophoneDenied
}
