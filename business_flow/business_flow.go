// Package businessflow contains the business logic for the application.
package businessflow

import (
	"fmt"
	"strings"

	"github.com/amirphl/dialflow/config"
)

// Webhook paths the telephony platform calls back into
const (
	PathIVRPrompt    = "/twilio/ivr-prompts/%d"
	PathIVRGather    = "/twilio/ivr-prompts/%d/gather?promptMessageId=%d"
	PathCallStatus   = "/twilio/status"
	PathSMSStatus    = "/twilio/status-sms"
	PathDialCallback = "/twilio/dial-callback"
)

// Audio folders under the storage URL
const (
	promptAudioFolder = "promptAudios"
)

// CallbackURLs builds absolute webhook and audio URLs
type CallbackURLs struct {
	apiURL     string
	storageURL string
}

// NewCallbackURLs derives the public URLs from the telephony config
func NewCallbackURLs(cfg *config.TwilioConfig) CallbackURLs {
	return CallbackURLs{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		storageURL: strings.TrimRight(cfg.StorageURL, "/"),
	}
}

// API formats a webhook path and prefixes the public API URL
func (u CallbackURLs) API(path string, args ...any) string {
	if len(args) > 0 {
		path = fmt.Sprintf(path, args...)
	}
	return u.apiURL + path
}

// Storage returns the public URL of a stored audio file
func (u CallbackURLs) Storage(path string) string {
	return u.storageURL + "/" + strings.TrimLeft(path, "/")
}

// PromptAudio returns the public URL of a prompt message recording
func (u CallbackURLs) PromptAudio(audio string) string {
	return u.Storage(promptAudioFolder + "/" + audio)
}
