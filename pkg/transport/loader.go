package transport

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kifreason/kifreason/pkg/eventbus"
	"github.com/kifreason/kifreason/pkg/events"
	"github.com/kifreason/kifreason/pkg/kif"
)

// LoadFile reads path, accumulating characters until parenthesis depth
// returns to zero, parsing and publishing each top-level block as an
// InputSubmitted event. A malformed block is logged and skipped; the
// loader continues with the next block (spec §6 "File format", §7
// "ParseError").
func LoadFile(path string, bus *eventbus.Bus, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for _, block := range splitBlocks(f) {
		t, err := kif.ParseOne(block)
		if err != nil {
			log.WithError(err).WithField("file", path).Warn("transport: skipping malformed block")
			continue
		}
		bus.Publish(events.InputSubmitted{Term: t, SourceID: "file:" + path})
	}
	return nil
}

// splitBlocks scans r for top-level S-expression blocks: it accumulates
// runes until the parenthesis depth returns to zero outside any
// line comment, trimming each resulting block before returning it.
func splitBlocks(r io.Reader) []string {
	br := bufio.NewReader(r)
	var blocks []string
	var cur strings.Builder
	depth := 0
	inComment := false
	started := false

	for {
		ch, _, err := br.ReadRune()
		if err != nil {
			break
		}
		if inComment {
			cur.WriteRune(ch)
			if ch == '\n' {
				inComment = false
			}
			continue
		}
		switch ch {
		case ';':
			inComment = true
			cur.WriteRune(ch)
			continue
		case '(':
			depth++
			started = true
			cur.WriteRune(ch)
			continue
		case ')':
			depth--
			cur.WriteRune(ch)
			if depth <= 0 && started {
				blocks = append(blocks, strings.TrimSpace(cur.String()))
				cur.Reset()
				depth = 0
				started = false
			}
			continue
		default:
			if depth == 0 && !started && (ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r') {
				continue
			}
			cur.WriteRune(ch)
		}
	}
	if rest := strings.TrimSpace(cur.String()); rest != "" {
		blocks = append(blocks, rest)
	}
	return blocks
}
