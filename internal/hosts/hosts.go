// Package hosts loads a static name-to-address table from a hosts file
// (/etc/hosts format) and answers DNS question lookups against it.
package hosts

import (
	"bufio"
	"net"
	"os"
	"strings"

	"github.com/duskrelay/duskrelay/internal/dns"
	"github.com/duskrelay/duskrelay/internal/logging"
)

const defaultTTL = 600

// Table is a two-level index: domain name (wire bytes, as produced by
// dns.EncodeDomain) -> record type -> set of record value blobs (4
// bytes for A, 16 for AAAA). It is built once and never mutated after
// Load returns, so concurrent lookups need no locking.
type Table struct {
	entries map[string]map[dns.RecordType][][]byte
}

// Load reads path (typically /etc/hosts) and builds a Table. Lines
// beginning with # and blank lines are skipped; malformed addresses
// are logged at warn and dropped; duplicate (domain, type, value)
// triples are deduplicated.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t := &Table{entries: make(map[string]map[dns.RecordType][][]byte)}
	type dedupKey struct {
		name string
		typ  dns.RecordType
		blob string
	}
	seen := make(map[dedupKey]struct{})
	log := logging.For("hosts")

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = strings.TrimSpace(line[:idx])
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		ip := net.ParseIP(fields[0])
		if ip == nil {
			log.Warn("malformed address in hosts file", "line", line)
			continue
		}

		recType, blob := classify(ip)
		if blob == nil {
			log.Warn("unrecognized address family in hosts file", "line", line)
			continue
		}

		// Only the first name on the line is indexed; any further
		// aliases are ignored.
		host := fields[1]
		name, err := dns.EncodeDomain(host)
		if err != nil {
			log.Warn("malformed hostname in hosts file", "host", host, "err", err)
			continue
		}
		k := dedupKey{name: string(name), typ: recType, blob: string(blob)}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		byType, ok := t.entries[string(name)]
		if !ok {
			byType = make(map[dns.RecordType][][]byte)
			t.entries[string(name)] = byType
		}
		byType[recType] = append(byType[recType], blob)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return t, nil
}

func classify(ip net.IP) (dns.RecordType, []byte) {
	if v4 := ip.To4(); v4 != nil {
		return dns.TypeA, v4
	}
	if v6 := ip.To16(); v6 != nil {
		return dns.TypeAAAA, v6
	}
	return 0, nil
}

// Search returns answers for q, one per matching value blob, with a
// fixed TTL. An empty slice means no hosts-file entry matched.
func (t *Table) Search(q dns.Question) []dns.Answer {
	byType, ok := t.entries[string(q.Name)]
	if !ok {
		return nil
	}
	values, ok := byType[dns.RecordType(q.Type)]
	if !ok {
		return nil
	}

	answers := make([]dns.Answer, 0, len(values))
	for _, v := range values {
		answers = append(answers, dns.Answer{
			Name:  q.Name,
			Type:  q.Type,
			Class: uint16(dns.ClassIN),
			TTL:   defaultTTL,
			RData: v,
		})
	}
	return answers
}

// Entry is one human-readable hostname/address pair, for the admin
// API's hosts-table dump.
type Entry struct {
	Hostname string
	Type     string
	Address  string
}

// Dump renders the table's contents as human-readable entries, for
// the admin API.
func (t *Table) Dump() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for wireName, byType := range t.entries {
		host, err := dns.DecodeDomain([]byte(wireName))
		if err != nil {
			continue
		}
		for recType, values := range byType {
			typeName := "A"
			if recType == dns.TypeAAAA {
				typeName = "AAAA"
			}
			for _, v := range values {
				out = append(out, Entry{Hostname: host, Type: typeName, Address: net.IP(v).String()})
			}
		}
	}
	return out
}
