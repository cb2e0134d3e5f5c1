package status

import (
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/MrSnakeDoc/presence/internal/domain"
)

// Parser turns a status report into a domain.Snapshot.
// It holds no state between calls and performs no I/O.
type Parser struct {
	emptySentinel string
}

// NewParser creates a parser. emptySentinel is the literal the producer
// writes instead of a player list when nobody is online.
func NewParser(emptySentinel string) *Parser {
	if emptySentinel == "" {
		emptySentinel = domain.DefaultEmptySentinel
	}
	return &Parser{emptySentinel: emptySentinel}
}

// block accumulates one service block. Steps return a new value instead of
// mutating the previous one; the block is finalized when the next header
// starts or the input ends.
type block struct {
	snap domain.ServiceSnapshot
}

// report is the fold state threaded through the lines.
type report struct {
	asOf     string
	services map[string]domain.ServiceSnapshot
	order    []string
	presence *domain.PresenceIndex
}

func newReport() *report {
	return &report{
		services: make(map[string]domain.ServiceSnapshot),
		presence: domain.NewPresenceIndex(),
	}
}

// emit finalizes b into the report.
func (r *report) emit(b *block) {
	if b == nil {
		return
	}
	if _, seen := r.services[b.snap.Name]; !seen {
		r.order = append(r.order, b.snap.Name)
	}
	r.services[b.snap.Name] = b.snap
	for _, id := range b.snap.OnlineEntities {
		r.presence.Add(id, b.snap.Name)
	}
}

// Parse parses content. Any malformed line discards the whole report.
func (p *Parser) Parse(content string) (*domain.Snapshot, error) {
	r := newReport()
	var current *block

	for i, raw := range strings.Split(content, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		next, reason := p.step(r, current, line)
		if reason != "" {
			return nil, &ParseError{LineNo: i + 1, Line: line, Reason: reason}
		}
		current = next
	}
	r.emit(current)

	if r.asOf == "" {
		return nil, ErrNoCheckTime
	}

	return &domain.Snapshot{
		AsOf:     r.asOf,
		Services: r.services,
		Order:    r.order,
		Presence: r.presence,
	}, nil
}

// step consumes one trimmed line and returns the block that is current
// afterwards, or a non-empty reason when the line is malformed.
func (p *Parser) step(r *report, current *block, line string) (*block, string) {
	if v, ok := valueAfter(line, prefixCheckTime); ok {
		if v == "" {
			return nil, "empty check time"
		}
		if r.asOf != "" {
			return nil, "duplicate check time"
		}
		r.asOf = v
		return current, ""
	}

	// Metadata prefixes are matched before headers so that an error message
	// ending in "):" is not taken for a new block.
	if isMetadata(line, p.emptySentinel) {
		if current == nil {
			return nil, ""
		}
		return p.applyMetadata(*current, line)
	}

	if strings.HasSuffix(line, headerSuffix) {
		b, reason := parseHeader(line)
		if reason != "" {
			return nil, reason
		}
		r.emit(current)
		return b, ""
	}

	// Unknown lines are ignored, inside or outside a block.
	return current, ""
}

func isMetadata(line, sentinel string) bool {
	for _, prefix := range []string{prefixVersion, prefixPlayers, prefixCount, prefixState, prefixErrorMsg} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return line == sentinel
}

func (p *Parser) applyMetadata(b block, line string) (*block, string) {
	if line == p.emptySentinel {
		b.snap.OnlineEntities = []string{}
		return &b, ""
	}

	if v, ok := valueAfter(line, prefixVersion); ok {
		b.snap.Version = v
		b.snap.Reachable = true
		return &b, ""
	}

	if v, ok := valueAfter(line, prefixPlayers); ok {
		b.snap.OnlineEntities = p.splitPlayers(v)
		return &b, ""
	}

	if v, ok := valueAfter(line, prefixCount); ok {
		current, capacity, reason := parseCount(v)
		if reason != "" {
			return nil, reason
		}
		b.snap.CurrentCount = current
		b.snap.Capacity = capacity
		return &b, ""
	}

	if v, ok := valueAfter(line, prefixState); ok {
		b.snap.Status = v
		return &b, ""
	}

	if v, ok := valueAfter(line, prefixErrorMsg); ok {
		b.snap.Error = v
		return &b, ""
	}

	return &b, ""
}

func (p *Parser) splitPlayers(list string) []string {
	if list == "" || list == p.emptySentinel {
		return []string{}
	}
	ids := lo.Map(strings.Split(list, listSeparator), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Filter(ids, func(s string, _ int) bool { return s != "" })
}

// parseHeader parses "<name> (<address>):".
func parseHeader(line string) (*block, string) {
	nameEnd := strings.Index(line, headerOpen)
	if nameEnd < 0 {
		return nil, "block header without address"
	}
	name := line[:nameEnd]
	if strings.TrimSpace(name) == "" {
		return nil, "block header without name"
	}
	open := strings.Index(line, "(")
	address := line[open+1 : len(line)-len(headerSuffix)]

	return &block{snap: domain.ServiceSnapshot{
		Name:           name,
		Address:        address,
		OnlineEntities: []string{},
	}}, ""
}

// parseCount parses "<current>/<max>".
func parseCount(v string) (int, int, string) {
	left, right, found := strings.Cut(v, countSeparator)
	if !found {
		return 0, 0, "player count without '/'"
	}
	current, err := strconv.Atoi(strings.TrimSpace(left))
	if err != nil || current < 0 {
		return 0, 0, "invalid current player count"
	}
	capacity, err := strconv.Atoi(strings.TrimSpace(right))
	if err != nil || capacity < 0 {
		return 0, 0, "invalid max player count"
	}
	return current, capacity, ""
}

// valueAfter returns the trimmed text after prefix.
func valueAfter(line, prefix string) (string, bool) {
	if !strings.HasPrefix(line, prefix) {
		return "", false
	}
	return strings.TrimSpace(line[len(prefix):]), true
}
