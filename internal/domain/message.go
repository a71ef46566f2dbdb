package domain

import "time"

// Sender tags who produced a transcript message.
type Sender string

const (
	SenderClient Sender = "client"
	SenderAvatar Sender = "avatar"
)

// Message is one finished utterance in the transcript. Never mutated after append.
type Message struct {
	ID      string    `json:"id"`
	Seq     uint64    `json:"seq"`
	Sender  Sender    `json:"sender"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}
