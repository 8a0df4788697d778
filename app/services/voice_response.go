package services

import (
	"strconv"

	"github.com/twilio/twilio-go/twiml"
)

// VoiceResponse accumulates voice markup verbs
type VoiceResponse struct {
	verbs []twiml.Element
}

// NewVoiceResponse creates an empty voice response
func NewVoiceResponse() *VoiceResponse {
	return &VoiceResponse{}
}

// GatherOptions configures a digit-collecting block
type GatherOptions struct {
	Action    string
	NumDigits int
	Timeout   int
}

// DialOptions configures a call bridge
type DialOptions struct {
	Action   string
	CallerID string
}

func (v *VoiceResponse) Say(text string) *VoiceResponse {
	v.verbs = append(v.verbs, &twiml.VoiceSay{Message: text})
	return v
}

func (v *VoiceResponse) Play(url string) *VoiceResponse {
	v.verbs = append(v.verbs, &twiml.VoicePlay{Url: url})
	return v
}

func (v *VoiceResponse) Pause(seconds int) *VoiceResponse {
	v.verbs = append(v.verbs, &twiml.VoicePause{Length: strconv.Itoa(seconds)})
	return v
}

func (v *VoiceResponse) Hangup() *VoiceResponse {
	v.verbs = append(v.verbs, &twiml.VoiceHangup{})
	return v
}

func (v *VoiceResponse) Redirect(url string) *VoiceResponse {
	v.verbs = append(v.verbs, &twiml.VoiceRedirect{Url: url, Method: "POST"})
	return v
}

// Gather nests the verbs added by fill inside a Gather block
func (v *VoiceResponse) Gather(opts GatherOptions, fill func(inner *VoiceResponse)) *VoiceResponse {
	inner := NewVoiceResponse()
	if fill != nil {
		fill(inner)
	}
	v.verbs = append(v.verbs, &twiml.VoiceGather{
		Action:        opts.Action,
		Method:        "POST",
		NumDigits:     strconv.Itoa(opts.NumDigits),
		Timeout:       strconv.Itoa(opts.Timeout),
		InnerElements: inner.verbs,
	})
	return v
}

// Dial bridges the call to number
func (v *VoiceResponse) Dial(opts DialOptions, number string) *VoiceResponse {
	v.verbs = append(v.verbs, &twiml.VoiceDial{
		Action:        opts.Action,
		CallerId:      opts.CallerID,
		InnerElements: []twiml.Element{&twiml.VoiceNumber{PhoneNumber: number}},
	})
	return v
}

// Len returns the number of top-level verbs
func (v *VoiceResponse) Len() int {
	return len(v.verbs)
}

// Render serializes the response to XML
func (v *VoiceResponse) Render() (string, error) {
	return twiml.Voice(v.verbs)
}

// MessagingReply renders a messaging response; an empty body renders an empty response
func MessagingReply(body string) (string, error) {
	var verbs []twiml.Element
	if body != "" {
		verbs = append(verbs, &twiml.MessagingMessage{Body: body})
	}
	return twiml.Messages(verbs)
}
