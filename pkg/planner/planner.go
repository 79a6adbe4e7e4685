// Package planner implements the goal decomposition planner (C8): it
// splits a free-text goal into sentence-level steps, matches each against
// the best-overlapping registered skill, and chains steps into a linear
// dependency order further constrained by any explicit hint sequences.
package planner

import (
	"crypto/rand"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
	"unicode"
)

// Skill is the narrow view of a registered manifest the planner scores
// candidates against.
type Skill struct {
	Name        string
	Inputs      []string
	Permissions []string
}

// Step is one decomposed action in a Plan.
type Step struct {
	ID           string
	Description  string
	Skill        string
	Dependencies []string
}

// Plan is a goal broken into ordered, skill-matched steps.
type Plan struct {
	Goal  string
	Steps []Step
}

// Planner matches goal sentences against a registered skill catalogue.
type Planner struct {
	skills map[string]Skill
}

// New builds a Planner over the given catalogue.
func New(skills []Skill) *Planner {
	p := &Planner{skills: map[string]Skill{}}
	p.RegisterSkills(skills)
	return p
}

// RegisterSkills adds or replaces catalogue entries.
func (p *Planner) RegisterSkills(skills []Skill) {
	for _, s := range skills {
		p.skills[s.Name] = s
	}
}

// Plan splits goal into sentences, matches each to the best skill, and
// chains them with a linear dependency on the previous step. Hint
// sequences of the form "A -> B -> C" additionally constrain step
// ordering: if a later step's matched skill is required (by a hint) to
// follow an earlier one, that dependency is added alongside the linear
// chain.
func (p *Planner) Plan(goal string, hints []string) Plan {
	sentences := splitSentences(goal)
	steps := make([]Step, 0, len(sentences))

	for i, sentence := range sentences {
		skill := p.matchSkill(sentence, hints)
		id := "step-" + strconv.Itoa(i+1) + "-" + shortID()
		var deps []string
		if i > 0 {
			deps = append(deps, steps[i-1].ID)
		}
		steps = append(steps, Step{ID: id, Description: sentence, Skill: skill, Dependencies: deps})
	}

	applyHintSequences(steps, hints)
	return Plan{Goal: goal, Steps: steps}
}

func splitSentences(goal string) []string {
	replaced := strings.ReplaceAll(goal, "\n", " ")
	parts := strings.Split(replaced, ".")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		if trimmed := strings.TrimSpace(goal); trimmed != "" {
			out = []string{trimmed}
		}
	}
	return out
}

// matchSkill prefers an exact hint-named skill (hints that are plain
// names, not "->" sequences); otherwise it scores every candidate by
// token overlap between (name, inputs, permissions) and the sentence.
func (p *Planner) matchSkill(sentence string, hints []string) string {
	named := hintedNames(hints)
	candidates := p.skills
	if len(named) > 0 {
		filtered := map[string]Skill{}
		for name, s := range p.skills {
			if named[strings.ToLower(name)] {
				filtered[name] = s
			}
		}
		if len(filtered) > 0 {
			return firstByName(filtered)
		}
	}

	sentenceLower := strings.ToLower(sentence)
	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	best := ""
	bestScore := -1
	for _, name := range names {
		s := candidates[name]
		score := overlapScore(s, sentenceLower)
		if score > bestScore {
			bestScore = score
			best = name
		}
	}
	return best
}

func overlapScore(s Skill, sentenceLower string) int {
	isSep := func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) }
	words := map[string]bool{}
	for _, w := range strings.FieldsFunc(sentenceLower, isSep) {
		words[w] = true
	}
	keywords := append([]string{s.Name}, s.Inputs...)
	keywords = append(keywords, s.Permissions...)
	counted := map[string]bool{}
	score := 0
	for _, kw := range keywords {
		for _, tok := range strings.FieldsFunc(strings.ToLower(kw), isSep) {
			if words[tok] && !counted[tok] {
				counted[tok] = true
				score++
			}
		}
	}
	return score
}

// hintedNames returns the lowercased set of plain-name hints (hints that
// are not "A -> B" sequences).
func hintedNames(hints []string) map[string]bool {
	out := map[string]bool{}
	for _, h := range hints {
		if strings.Contains(h, "->") {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(h))] = true
	}
	return out
}

// applyHintSequences parses every "A -> B -> C" hint and, for each
// consecutive pair whose skills both appear among steps, adds the earlier
// step's id as an additional dependency of the later one if not already
// present.
func applyHintSequences(steps []Step, hints []string) {
	stepsBySkill := map[string][]int{}
	for i, s := range steps {
		if s.Skill != "" {
			stepsBySkill[s.Skill] = append(stepsBySkill[s.Skill], i)
		}
	}

	for _, hint := range hints {
		if !strings.Contains(hint, "->") {
			continue
		}
		chain := strings.Split(hint, "->")
		for i := 0; i < len(chain)-1; i++ {
			from := strings.TrimSpace(chain[i])
			to := strings.TrimSpace(chain[i+1])
			fromIdxs, ok1 := stepsBySkill[from]
			toIdxs, ok2 := stepsBySkill[to]
			if !ok1 || !ok2 {
				continue
			}
			fromID := steps[fromIdxs[len(fromIdxs)-1]].ID
			for _, toIdx := range toIdxs {
				if !contains(steps[toIdx].Dependencies, fromID) {
					steps[toIdx].Dependencies = append(steps[toIdx].Dependencies, fromID)
				}
			}
		}
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func firstByName(m map[string]Skill) string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names[0]
}

func shortID() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}
