// Package ingest loads incident, environmental and alert data from external
// sources, normalizes it and stores it geocoded to H3 cells.
package ingest

import (
	"sort"
	"strings"
)

// Rule maps raw incident descriptions to a normalized category. A rule
// matches when the description contains any AnyOf term and every AllOf term.
type Rule struct {
	AnyOf    []string
	AllOf    []string
	Category string
	Severity int // 0-100
}

// RuleSet is evaluated top to bottom and the first match wins
type RuleSet []Rule

// nypdRules classifies NYPD complaint offense descriptions. Felony assault
// must precede plain assault.
var nypdRules = RuleSet{
	{AnyOf: []string{"MURDER", "HOMICIDE", "SHOOTING"}, Category: "homicide", Severity: 100},
	{AnyOf: []string{"RAPE", "SEXUAL"}, Category: "sexual_assault", Severity: 90},
	{AnyOf: []string{"ROBBERY"}, Category: "robbery", Severity: 80},
	{AllOf: []string{"ASSAULT", "FELONY"}, Category: "assault_aggravated", Severity: 70},
	{AnyOf: []string{"BURGLARY"}, Category: "burglary", Severity: 60},
	{AnyOf: []string{"WEAPON"}, Category: "weapons", Severity: 60},
	{AnyOf: []string{"ASSAULT"}, Category: "assault_simple", Severity: 40},
	{AnyOf: []string{"GRAND LARCENY"}, Category: "theft_major", Severity: 40},
	{AnyOf: []string{"DANGEROUS DRUGS"}, Category: "drugs", Severity: 30},
	{AnyOf: []string{"PETIT LARCENY"}, Category: "theft_minor", Severity: 20},
	{AnyOf: []string{"HARRASSMENT", "HARASSMENT"}, Category: "harassment", Severity: 20},
	{AnyOf: []string{"CRIMINAL MISCHIEF"}, Category: "vandalism", Severity: 15},
	{AnyOf: []string{"OFFENSES AGAINST PUBLIC ORDER"}, Category: "public_order", Severity: 10},
}

// chicagoRules classifies Chicago Data Portal primary types. Sexual assault
// and vehicle theft must precede the broader assault and theft terms.
var chicagoRules = RuleSet{
	{AnyOf: []string{"HOMICIDE"}, Category: "homicide", Severity: 100},
	{AnyOf: []string{"SEXUAL ASSAULT", "SEX OFFENSE"}, Category: "sexual_assault", Severity: 90},
	{AnyOf: []string{"ROBBERY"}, Category: "robbery", Severity: 80},
	{AnyOf: []string{"BURGLARY"}, Category: "burglary", Severity: 60},
	{AnyOf: []string{"WEAPONS VIOLATION"}, Category: "weapons", Severity: 60},
	{AnyOf: []string{"BATTERY", "ASSAULT"}, Category: "assault_simple", Severity: 40},
	{AnyOf: []string{"MOTOR VEHICLE THEFT"}, Category: "theft_major", Severity: 40},
	{AnyOf: []string{"NARCOTICS"}, Category: "drugs", Severity: 30},
	{AnyOf: []string{"THEFT"}, Category: "theft_minor", Severity: 20},
	{AnyOf: []string{"STALKING", "INTIMIDATION"}, Category: "harassment", Severity: 20},
	{AnyOf: []string{"CRIMINAL DAMAGE"}, Category: "vandalism", Severity: 15},
	{AnyOf: []string{"PUBLIC PEACE VIOLATION"}, Category: "public_order", Severity: 10},
}

// baselineRules classifies the category labels of aggregated state-level
// statistics, which carry no per-incident detail.
var baselineRules = RuleSet{
	{AnyOf: []string{"ROBBERY"}, Category: "robbery", Severity: 80},
	{AnyOf: []string{"BURGLARY"}, Category: "burglary", Severity: 50},
	{AnyOf: []string{"ASSAULT"}, Category: "assault_simple", Severity: 50},
	{AnyOf: []string{"THEFT", "LARCENY"}, Category: "theft_major", Severity: 40},
	{AnyOf: []string{"DRUG"}, Category: "drugs", Severity: 50},
	{AnyOf: []string{"VANDALISM"}, Category: "vandalism", Severity: 20},
}

// ruleSets are the classifiers a source may name in its rules field
var ruleSets = map[string]RuleSet{
	"nypd":     nypdRules,
	"chicago":  chicagoRules,
	"baseline": baselineRules,
}

// LookupRules returns the rule set registered under name
func LookupRules(name string) (RuleSet, bool) {
	rs, ok := ruleSets[name]
	return rs, ok
}

// RuleSetNames returns the registered rule set names in sorted order
func RuleSetNames() []string {
	names := make([]string, 0, len(ruleSets))
	for name := range ruleSets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r Rule) matches(upper string) bool {
	for _, term := range r.AllOf {
		if !strings.Contains(upper, term) {
			return false
		}
	}
	if len(r.AnyOf) == 0 {
		return len(r.AllOf) > 0
	}
	for _, term := range r.AnyOf {
		if strings.Contains(upper, term) {
			return true
		}
	}
	return false
}

// Normalize classifies a raw description. ok is false when no rule matches
// and the record should be ignored.
func (rs RuleSet) Normalize(raw string) (category string, severity int, ok bool) {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	if upper == "" {
		return "", 0, false
	}
	for _, r := range rs {
		if r.matches(upper) {
			return r.Category, r.Severity, true
		}
	}
	return "", 0, false
}
