package dto

// TwilioVoiceRequest is the form the platform posts when it fetches TwiML for a call
type TwilioVoiceRequest struct {
	AccountSid string `form:"AccountSid" validate:"required"`
	CallSid    string `form:"CallSid" validate:"required"`
	From       string `form:"From"`
	To         string `form:"To"`
	FromState  string `form:"FromState"`
	FromCity   string `form:"FromCity"`
	AnsweredBy string `form:"AnsweredBy"`
	Digits     string `form:"Digits"`
}

// TwilioCallStatusRequest is a call status callback
type TwilioCallStatusRequest struct {
	AccountSid   string `form:"AccountSid" validate:"required"`
	CallSid      string `form:"CallSid" validate:"required"`
	CallStatus   string `form:"CallStatus" validate:"required"`
	CallDuration int    `form:"CallDuration" validate:"gte=0"`
	Timestamp    string `form:"Timestamp"`
	RecordingURL string `form:"RecordingUrl"`
	AnsweredBy   string `form:"AnsweredBy"`
}

// TwilioSMSStatusRequest is a message status callback
type TwilioSMSStatusRequest struct {
	AccountSid string `form:"AccountSid" validate:"required"`
	SmsSid     string `form:"SmsSid" validate:"required"`
	SmsStatus  string `form:"SmsStatus" validate:"required"`
}

// TwilioDialCallbackRequest is posted when a transferred leg ends
type TwilioDialCallbackRequest struct {
	AccountSid       string `form:"AccountSid" validate:"required"`
	CallSid          string `form:"CallSid" validate:"required"`
	DialCallStatus   string `form:"DialCallStatus"`
	DialCallDuration *int   `form:"DialCallDuration" validate:"omitempty,gte=0"`
}

// TwilioInboundSMSRequest is an inbound text message
type TwilioInboundSMSRequest struct {
	AccountSid string `form:"AccountSid" validate:"required"`
	MessageSid string `form:"MessageSid" validate:"required"`
	From       string `form:"From" validate:"required"`
	To         string `form:"To" validate:"required"`
	Body       string `form:"Body"`
	FromState  string `form:"FromState"`
	FromCity   string `form:"FromCity"`
}

// TwilioInboundSMSResponse carries the auto reply of an inbound text; empty when none
type TwilioInboundSMSResponse struct {
	Reply string `json:"reply,omitempty"`
}
