package snapshot

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/harun/beacon/pkg/location"
)

// ErrPersistence marks snapshot encode, decode and file failures
var ErrPersistence = errors.New("snapshot persistence failed")

const encMarker = "ENC:"

var utf8BOM = []byte("\xef\xbb\xbf")

type fileRecord struct {
	CurrentLocation  json.RawMessage     `json:"currentLocation"`
	LastUpdate       time.Time           `json:"lastUpdate"`
	IsSharingEnabled bool                `json:"isSharingEnabled"`
	AllowedUsers     []location.Identity `json:"allowedUsers"`
	History          []fileHistory       `json:"history"`
}

type fileHistory struct {
	Location  json.RawMessage `json:"location"`
	Timestamp time.Time       `json:"timestamp"`
}

// Codec converts store records to and from the snapshot file format: a
// JSON object keyed by identity in which every coordinate pair is
// encrypted separately and written as "ENC:" followed by hex.
type Codec struct {
	cipher Cipher
	logger zerolog.Logger
}

// NewCodec creates a codec using c for coordinate payloads
func NewCodec(c Cipher, logger zerolog.Logger) *Codec {
	return &Codec{
		cipher: c,
		logger: logger.With().Str("component", "snapshot").Logger(),
	}
}

// Encode serializes records
func (c *Codec) Encode(records []location.Record) ([]byte, error) {
	out := make(map[string]fileRecord, len(records))

	for _, rec := range records {
		current, err := c.seal(rec.Position)
		if err != nil {
			return nil, fmt.Errorf("%w: encrypt %s: %v", ErrPersistence, rec.Owner, err)
		}

		history := make([]fileHistory, 0, len(rec.History))
		for _, h := range rec.History {
			loc, err := c.seal(h.Position)
			if err != nil {
				return nil, fmt.Errorf("%w: encrypt %s history: %v", ErrPersistence, rec.Owner, err)
			}
			history = append(history, fileHistory{Location: loc, Timestamp: h.Timestamp})
		}

		allowed := rec.Viewers
		if allowed == nil {
			allowed = []location.Identity{}
		}

		out[rec.Owner.String()] = fileRecord{
			CurrentLocation:  current,
			LastUpdate:       rec.LastUpdate,
			IsSharingEnabled: rec.SharingEnabled,
			AllowedUsers:     allowed,
			History:          history,
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return data, nil
}

// Decode parses a snapshot. Coordinates without the ENC: marker are read as
// plaintext arrays. A record with an undecryptable or malformed coordinate
// is skipped with a warning; a blob that is not valid JSON fails.
func (c *Codec) Decode(blob []byte) ([]location.Record, error) {
	blob = bytes.TrimPrefix(blob, utf8BOM)
	if len(bytes.TrimSpace(blob)) == 0 {
		return nil, nil
	}

	var in map[string]fileRecord
	if err := json.Unmarshal(blob, &in); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	records := make([]location.Record, 0, len(in))
	for owner, fr := range in {
		rec, err := c.decodeRecord(location.Identity(owner), fr)
		if err != nil {
			c.logger.Warn().Err(err).Str("user_id", owner).Msg("Skipping unreadable snapshot record")
			continue
		}
		records = append(records, rec)
	}

	slices.SortFunc(records, func(a, b location.Record) int {
		return strings.Compare(a.Owner.String(), b.Owner.String())
	})
	return records, nil
}

func (c *Codec) decodeRecord(owner location.Identity, fr fileRecord) (location.Record, error) {
	current, err := c.open(fr.CurrentLocation)
	if err != nil {
		return location.Record{}, fmt.Errorf("current location: %w", err)
	}

	rec := location.Record{
		Owner:          owner,
		Position:       current,
		LastUpdate:     fr.LastUpdate,
		SharingEnabled: fr.IsSharingEnabled,
		Viewers:        fr.AllowedUsers,
		History:        make([]location.HistoryEntry, 0, len(fr.History)),
	}

	for i, h := range fr.History {
		pos, err := c.open(h.Location)
		if err != nil {
			return location.Record{}, fmt.Errorf("history entry %d: %w", i, err)
		}
		rec.History = append(rec.History, location.HistoryEntry{Position: pos, Timestamp: h.Timestamp})
	}

	return rec, nil
}

// seal encrypts the [lat,lng] text of pos into a JSON string value
func (c *Codec) seal(pos location.Position) (json.RawMessage, error) {
	plain, err := json.Marshal(pos)
	if err != nil {
		return nil, err
	}
	ct, err := c.cipher.Encrypt(plain)
	if err != nil {
		return nil, err
	}
	return json.Marshal(encMarker + hex.EncodeToString(ct))
}

// open reverses seal, passing plaintext arrays through
func (c *Codec) open(raw json.RawMessage) (location.Position, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return location.Position{}, errors.New("missing coordinates")
	}

	plain := []byte(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return location.Position{}, err
		}
		if !strings.HasPrefix(s, encMarker) {
			return location.Position{}, fmt.Errorf("unrecognised coordinate string %q", s)
		}
		ct, err := hex.DecodeString(strings.TrimPrefix(s, encMarker))
		if err != nil {
			return location.Position{}, fmt.Errorf("decode hex: %w", err)
		}
		if plain, err = c.cipher.Decrypt(ct); err != nil {
			return location.Position{}, fmt.Errorf("decrypt: %w", err)
		}
	}

	var pos location.Position
	if err := json.Unmarshal(plain, &pos); err != nil {
		return location.Position{}, err
	}
	if err := pos.Validate(); err != nil {
		return location.Position{}, err
	}
	return pos, nil
}
