// Defaulterr - Default Audio and Subtitle Track Synchronizer for Plex
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/defaulterr

package rules

import (
	"fmt"
	"sort"
	"strings"
)

// Configuration keys of a rule.
const (
	keyInclude = "include"
	keyExclude = "exclude"
	keyOnMatch = "on_match"
	keyAudio   = "audio"
	keySubs    = "subtitles"
)

// ParseLibraryFilters converts the decoded filters section of one library
// (group name -> {audio, subtitles}) into LibraryFilters. Groups are sorted by
// name so iteration order never depends on map ordering.
func ParseLibraryFilters(library string, raw map[string]interface{}) (LibraryFilters, error) {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	out := LibraryFilters{Library: library, Groups: make([]GroupFilters, 0, len(names))}
	for _, name := range names {
		tf, err := ParseTrackFilters(raw[name])
		if err != nil {
			return LibraryFilters{}, fmt.Errorf("library %q group %q: %w", library, name, err)
		}
		out.Groups = append(out.Groups, GroupFilters{Group: name, Filters: tf})
	}
	return out, nil
}

// ParseTrackFilters converts one group's {audio, subtitles} block.
func ParseTrackFilters(raw interface{}) (TrackFilters, error) {
	m, err := asMap(raw)
	if err != nil {
		return TrackFilters{}, err
	}

	var tf TrackFilters
	for key, value := range m {
		switch key {
		case keyAudio:
			if tf.Audio, err = ParseRuleSet(value, false, true); err != nil {
				return TrackFilters{}, fmt.Errorf("audio: %w", err)
			}
		case keySubs:
			if tf.Subtitles, err = ParseRuleSet(value, true, true); err != nil {
				return TrackFilters{}, fmt.Errorf("subtitles: %w", err)
			}
		default:
			return TrackFilters{}, fmt.Errorf("unknown track %q (want audio or subtitles)", key)
		}
	}
	return tf, nil
}

// ParseRuleSet converts a rule list. allowDisabled permits the "disabled"
// literal; allowOnMatch permits on_match blocks (false inside a chained list).
func ParseRuleSet(raw interface{}, allowDisabled, allowOnMatch bool) (*RuleSet, error) {
	if s, ok := raw.(string); ok {
		if allowDisabled && strings.EqualFold(strings.TrimSpace(s), DisabledToken) {
			return Disabled(), nil
		}
		return nil, fmt.Errorf("unexpected value %q", s)
	}

	list, ok := raw.([]interface{})
	if !ok {
		return nil, fmt.Errorf("expected a list of rules, got %T", raw)
	}

	set := &RuleSet{Rules: make([]Rule, 0, len(list))}
	for i, item := range list {
		rule, err := parseRule(item, allowOnMatch)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		set.Rules = append(set.Rules, rule)
	}
	return set, nil
}

func parseRule(raw interface{}, allowOnMatch bool) (Rule, error) {
	m, err := asMap(raw)
	if err != nil {
		return Rule{}, err
	}

	var rule Rule
	for key, value := range m {
		switch key {
		case keyInclude:
			if rule.Include, err = parsePredicate(value); err != nil {
				return Rule{}, fmt.Errorf("include: %w", err)
			}
		case keyExclude:
			if rule.Exclude, err = parsePredicate(value); err != nil {
				return Rule{}, fmt.Errorf("exclude: %w", err)
			}
		case keyOnMatch:
			if !allowOnMatch {
				return Rule{}, fmt.Errorf("on_match is not allowed inside on_match")
			}
			if rule.OnMatch, err = parseOnMatch(value); err != nil {
				return Rule{}, fmt.Errorf("on_match: %w", err)
			}
		default:
			return Rule{}, fmt.Errorf("unknown key %q", key)
		}
	}
	return rule, nil
}

func parseOnMatch(raw interface{}) (OnMatch, error) {
	m, err := asMap(raw)
	if err != nil {
		return OnMatch{}, err
	}

	var om OnMatch
	for key, value := range m {
		switch key {
		case keyAudio:
			if om.Audio, err = ParseRuleSet(value, false, false); err != nil {
				return OnMatch{}, fmt.Errorf("audio: %w", err)
			}
		case keySubs:
			if om.Subtitles, err = ParseRuleSet(value, true, false); err != nil {
				return OnMatch{}, fmt.Errorf("subtitles: %w", err)
			}
		default:
			return OnMatch{}, fmt.Errorf("unknown track %q", key)
		}
	}
	return om, nil
}

// parsePredicate turns {field: substring | [substrings]} into lowercased lists.
// Whitespace is significant, so " eng" does not match "beng".
func parsePredicate(raw interface{}) (map[string][]string, error) {
	m, err := asMap(raw)
	if err != nil {
		return nil, err
	}

	out := make(map[string][]string, len(m))
	for field, value := range m {
		var needles []string
		switch v := value.(type) {
		case []interface{}:
			for _, item := range v {
				if s := scalar(item); s != "" {
					needles = append(needles, s)
				}
			}
		case []string:
			for _, item := range v {
				if s := strings.ToLower(item); s != "" {
					needles = append(needles, s)
				}
			}
		default:
			if s := scalar(v); s != "" {
				needles = append(needles, s)
			}
		}
		if len(needles) == 0 {
			return nil, fmt.Errorf("field %q has no substrings", field)
		}
		out[field] = needles
	}
	return out, nil
}

func scalar(v interface{}) string {
	if v == nil {
		return ""
	}
	return strings.ToLower(fmt.Sprint(v))
}

func asMap(raw interface{}) (map[string]interface{}, error) {
	switch m := raw.(type) {
	case map[string]interface{}:
		return m, nil
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			out[fmt.Sprint(k)] = v
		}
		return out, nil
	case nil:
		return map[string]interface{}{}, nil
	default:
		return nil, fmt.Errorf("expected a mapping, got %T", raw)
	}
}
