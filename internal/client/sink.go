package client

// Sink receives chat text decoded from server responses.
type Sink interface {
	OnChatLine(text string)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(text string)

func (f SinkFunc) OnChatLine(text string) { f(text) }

type discardSink struct{}

func (discardSink) OnChatLine(string) {}
