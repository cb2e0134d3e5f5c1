package file

import (
	jsoniter "github.com/json-iterator/go"

	"github.com/MrSnakeDoc/presence/internal/domain"
)

var codec = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// record is the persisted form of a domain.EntityRecord.
// The document is a flat JSON array of these objects.
type record struct {
	Name           string   `json:"name"`
	IsOnline       bool     `json:"isOnline"`
	CurrentServers []string `json:"currentServers"`
	LastServer     *string  `json:"lastServer"`
	LastSeen       string   `json:"lastSeen"`
	FirstSeen      string   `json:"firstSeen"`
	Role           string   `json:"role"`
	Tags           []string `json:"tags"`
}

func toRecord(rec domain.EntityRecord) record {
	out := record{
		Name:           rec.ID,
		IsOnline:       rec.IsOnline,
		CurrentServers: rec.CurrentServices,
		LastSeen:       rec.LastSeen,
		FirstSeen:      rec.FirstSeen,
		Role:           rec.Role,
		Tags:           rec.Tags,
	}
	if out.CurrentServers == nil {
		out.CurrentServers = []string{}
	}
	if out.Tags == nil {
		out.Tags = []string{}
	}
	// An entity that was never online anywhere has no last server.
	if rec.LastServer != "" {
		lastServer := rec.LastServer
		out.LastServer = &lastServer
	}
	return out
}

func fromRecord(r record) domain.EntityRecord {
	out := domain.EntityRecord{
		ID:              r.Name,
		IsOnline:        r.IsOnline,
		CurrentServices: r.CurrentServers,
		LastSeen:        r.LastSeen,
		FirstSeen:       r.FirstSeen,
		Role:            r.Role,
		Tags:            r.Tags,
	}
	if out.CurrentServices == nil {
		out.CurrentServices = []string{}
	}
	if r.LastServer != nil {
		out.LastServer = *r.LastServer
	}
	return out
}

// Encode serializes a roster generation.
func Encode(r *domain.Roster) ([]byte, error) {
	records := make([]record, 0, r.Len())
	for _, rec := range r.Records() {
		records = append(records, toRecord(rec))
	}
	data, err := codec.MarshalIndent(records, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Decode parses a roster document. Records without a name are dropped and
// reported in skipped; a repeated name keeps the last record.
func Decode(data []byte) (roster *domain.Roster, skipped int, err error) {
	var records []record
	if err := codec.Unmarshal(data, &records); err != nil {
		return nil, 0, err
	}
	roster = domain.NewRoster()
	for _, r := range records {
		if r.Name == "" {
			skipped++
			continue
		}
		roster.Put(fromRecord(r))
	}
	return roster, skipped, nil
}

// MarshalRecord encodes a single record in the document's object format.
func MarshalRecord(rec domain.EntityRecord) ([]byte, error) {
	return codec.Marshal(toRecord(rec))
}
