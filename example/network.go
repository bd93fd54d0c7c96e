package main

import (
	"context"
	"fmt"
)

type messageKind string

const (
	msgFill       messageKind = "fill"
	msgOffer      messageKind = "offer"
	msgTx         messageKind = "tx"
	msgSignatures messageKind = "sig"
)

// message is one CBOR payload between two parties. An empty To broadcasts
// to everyone but the sender.
type message struct {
	From    string
	To      string
	Kind    messageKind
	Payload []byte
}

type network struct {
	parties        []string
	listenChannels map[string]chan *message
}

func newNetwork(parties []string) *network {
	n := len(parties)
	lc := make(map[string]chan *message, n)
	for _, id := range parties {
		lc[id] = make(chan *message, 2*n)
	}
	return &network{
		parties:        parties,
		listenChannels: lc,
	}
}

func (n *network) send(msg *message) {
	if msg.To == "" {
		for _, id := range n.parties {
			if id != msg.From {
				n.listenChannels[id] <- msg
			}
		}
		return
	}
	n.listenChannels[msg.To] <- msg
}

// receive waits for the next message to id, which must be of kind.
func (n *network) receive(ctx context.Context, id string, kind messageKind) (*message, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg := <-n.listenChannels[id]:
		if msg.Kind != kind {
			return nil, fmt.Errorf("%s: expected %s message from %s, got %s", id, kind, msg.From, msg.Kind)
		}
		return msg, nil
	}
}
