// Package feedpb encodes and decodes the binary problematic-event batch
// exchanged with the backend.
//
// Wire schema (proto3 equivalent):
//
//	message ProblematicEventBatch {
//	  repeated ProblematicEvent events = 1;
//	}
//	message ProblematicEvent {
//	  string event_id      = 1;
//	  bytes  venue_payload = 2;
//	  int64  start_ts      = 3; // unix seconds
//	  int64  end_ts        = 4; // unix seconds
//	}
package feedpb

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mkraev/venuetrace/internal/models"
)

const (
	batchFieldEvents = 1

	eventFieldID      = 1
	eventFieldPayload = 2
	eventFieldStart   = 3
	eventFieldEnd     = 4
)

// DecodeBatch parses a binary batch into problematic events. Unknown fields
// are skipped so newer servers can extend the schema.
func DecodeBatch(raw []byte) ([]models.ProblematicEvent, error) {
	var events []models.ProblematicEvent

	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return nil, fmt.Errorf("batch tag: %w", protowire.ParseError(n))
		}
		raw = raw[n:]

		if num != batchFieldEvents || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return nil, fmt.Errorf("batch field %d: %w", num, protowire.ParseError(n))
			}
			raw = raw[n:]
			continue
		}

		msg, n := protowire.ConsumeBytes(raw)
		if n < 0 {
			return nil, fmt.Errorf("batch event: %w", protowire.ParseError(n))
		}
		raw = raw[n:]

		ev, err := decodeEvent(msg)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}

	return events, nil
}

func decodeEvent(raw []byte) (models.ProblematicEvent, error) {
	var ev models.ProblematicEvent

	for len(raw) > 0 {
		num, typ, n := protowire.ConsumeTag(raw)
		if n < 0 {
			return ev, fmt.Errorf("event tag: %w", protowire.ParseError(n))
		}
		raw = raw[n:]

		switch {
		case num == eventFieldID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(raw)
			if n < 0 {
				return ev, fmt.Errorf("event id: %w", protowire.ParseError(n))
			}
			ev.EventID = v
			raw = raw[n:]

		case num == eventFieldPayload && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(raw)
			if n < 0 {
				return ev, fmt.Errorf("event payload: %w", protowire.ParseError(n))
			}
			ev.VenuePayload = append([]byte(nil), v...)
			raw = raw[n:]

		case num == eventFieldStart && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return ev, fmt.Errorf("event start: %w", protowire.ParseError(n))
			}
			ev.Start = time.Unix(int64(v), 0).UTC()
			raw = raw[n:]

		case num == eventFieldEnd && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(raw)
			if n < 0 {
				return ev, fmt.Errorf("event end: %w", protowire.ParseError(n))
			}
			ev.End = time.Unix(int64(v), 0).UTC()
			raw = raw[n:]

		default:
			n = protowire.ConsumeFieldValue(num, typ, raw)
			if n < 0 {
				return ev, fmt.Errorf("event field %d: %w", num, protowire.ParseError(n))
			}
			raw = raw[n:]
		}
	}

	if ev.EventID == "" {
		return ev, fmt.Errorf("event without id")
	}
	return ev, nil
}

// EncodeBatch serializes events into the batch wire format.
func EncodeBatch(events []models.ProblematicEvent) []byte {
	var out []byte
	for _, ev := range events {
		msg := encodeEvent(ev)
		out = protowire.AppendTag(out, batchFieldEvents, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}
	return out
}

func encodeEvent(ev models.ProblematicEvent) []byte {
	var out []byte
	out = protowire.AppendTag(out, eventFieldID, protowire.BytesType)
	out = protowire.AppendString(out, ev.EventID)
	out = protowire.AppendTag(out, eventFieldPayload, protowire.BytesType)
	out = protowire.AppendBytes(out, ev.VenuePayload)
	out = protowire.AppendTag(out, eventFieldStart, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(ev.Start.Unix()))
	out = protowire.AppendTag(out, eventFieldEnd, protowire.VarintType)
	out = protowire.AppendVarint(out, uint64(ev.End.Unix()))
	return out
}
