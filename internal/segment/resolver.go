// internal/segment/resolver.go
package segment

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
	"github.com/rs/zerolog"

	"github.com/sasaflow/wabroadcast/internal/model"
	"github.com/sasaflow/wabroadcast/internal/repository"
)

// Candidate is one resolved, addressable target. WaID is the canonical
// address used for dedup across sources.
type Candidate struct {
	WaID        string
	DisplayName string
	Source      string
	SourceRefID int
}

// Resolver turns a segment's rule list into a deduplicated candidate list by
// unioning the three sources. The same resolve path backs both the count
// estimate and the full materialization, so they can never disagree.
type Resolver struct {
	Sources       repository.SourceRepositoryInterface
	DefaultRegion string // region assumed when a phone carries no country code
	Log           zerolog.Logger
}

// sourcePlan is the classified form of a rule list: which sources to query
// and the filter each of them applies.
type sourcePlan struct {
	conversations bool
	contacts      bool
	imports       bool
	filter        repository.SourceFilter
}

// Resolve evaluates rules against all applicable sources and unions the
// results. Sources are visited in fixed precedence order (conversations,
// contacts, imports); the first source to produce a canonical address owns
// its display name and reference.
func (r *Resolver) Resolve(rules []model.SegmentRule) ([]Candidate, error) {
	plan := classify(rules)

	seen := map[string]bool{}
	resolved := []Candidate{}

	add := func(rawPhone, name, source string, refID int) {
		waID := r.canonicalAddress(rawPhone)
		if waID == "" {
			// No usable phone: dropped silently, not counted, not erred.
			return
		}
		if seen[waID] {
			return
		}
		seen[waID] = true
		resolved = append(resolved, Candidate{WaID: waID, DisplayName: name, Source: source, SourceRefID: refID})
	}

	if plan.conversations {
		conversations, err := r.Sources.Conversations(plan.filter)
		if err != nil {
			return nil, err
		}
		for _, c := range conversations {
			add(c.WaID, c.Name, model.SourceConversation, c.ID)
		}
	}
	if plan.contacts {
		contacts, err := r.Sources.Contacts(plan.filter)
		if err != nil {
			return nil, err
		}
		for _, c := range contacts {
			add(c.Phone, c.Name, model.SourceContact, c.ID)
		}
	}
	if plan.imports {
		imports, err := r.Sources.ImportedContacts(plan.filter)
		if err != nil {
			return nil, err
		}
		for _, c := range imports {
			add(c.Phone, c.Name, model.SourceImport, c.ID)
		}
	}

	return resolved, nil
}

// classify interprets the tagged-variant rule list once, up front. Each rule
// either narrows the source selection or contributes a filter predicate; a
// source that cannot satisfy a positive predicate (imports have no tags,
// contacts no channel) is excluded rather than returned unfiltered.
func classify(rules []model.SegmentRule) sourcePlan {
	plan := sourcePlan{conversations: true, contacts: true, imports: true}

	for _, rule := range rules {
		switch rule.Type {
		case model.RuleSource:
			if rule.Operator != model.OpIs {
				continue
			}
			plan.conversations = rule.Value == model.SourceConversation
			plan.contacts = rule.Value == model.SourceContact
			plan.imports = rule.Value == model.SourceImport

		case model.RuleTag:
			switch {
			case rule.Operator == model.OpHas && strings.EqualFold(rule.Value, "none"):
				// "tag is none" reads as "no tags at all"; imports qualify
				// trivially since they never carry tags.
				plan.filter.TagNone = true
			case rule.Operator == model.OpHas:
				plan.filter.Tag = rule.Value
				plan.imports = false
			case rule.Operator == model.OpNotHas:
				plan.filter.ExcludedTag = rule.Value
			}

		case model.RuleChannel:
			if rule.Operator == model.OpIs {
				plan.filter.Channel = rule.Value
				plan.contacts = false
				plan.imports = false
			}

		case model.RuleStatus:
			if rule.Operator == model.OpIs {
				plan.filter.Status = rule.Value
				plan.contacts = false
				plan.imports = false
			}

		case model.RuleLastActivity:
			if rule.Operator == model.OpWithinDays {
				plan.filter.ActiveWithinDays = parseDays(rule.Value)
				plan.contacts = false
				plan.imports = false
			}

		case model.RuleVerified:
			if rule.Operator == model.OpIs {
				verified := strings.EqualFold(rule.Value, "true")
				plan.filter.Verified = &verified
				plan.conversations = false
				plan.imports = false
			}
		}
	}

	return plan
}

func parseDays(value string) int {
	days := 0
	for _, ch := range value {
		if ch < '0' || ch > '9' {
			return 0
		}
		days = days*10 + int(ch-'0')
	}
	return days
}

// canonicalAddress normalizes a raw phone into an E.164-derived wa_id
// (digits, no plus). Falls back to stripping non-digits when the number
// doesn't parse; returns "" when nothing usable remains.
func (r *Resolver) canonicalAddress(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	num, err := phonenumbers.Parse(raw, r.DefaultRegion)
	if err == nil && phonenumbers.IsValidNumber(num) {
		return strings.TrimPrefix(phonenumbers.Format(num, phonenumbers.E164), "+")
	}

	var digits strings.Builder
	for _, ch := range raw {
		if ch >= '0' && ch <= '9' {
			digits.WriteRune(ch)
		}
	}
	if digits.Len() < 7 {
		return ""
	}
	return digits.String()
}
