package evaltool

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrScoreNotFound is returned by a strict parser when a score is missing.
var ErrScoreNotFound = errors.New("score not found in evaluation output")

// Scores are the headline F-measures printed by an evaluation run.
type Scores struct {
	ODS float64
	OIS float64
}

// ScoreParser extracts Scores from captured evaluation output.
type ScoreParser interface {
	Parse(output string) (Scores, error)
}

var (
	odsPattern = regexp.MustCompile(`ODS: F=([0-9.]+)`)
	oisPattern = regexp.MustCompile(`OIS: F=([0-9.]+)`)
)

// RegexParser matches the "ODS: F=<n>" and "OIS: F=<n>" lines of
// BoundaryResults.WriteReport. This is a text contract with another program:
// when a line is absent the score silently defaults to 0 unless Strict is set.
type RegexParser struct {
	Strict bool
}

// Parse implements ScoreParser.
func (p RegexParser) Parse(output string) (Scores, error) {
	ods, err := p.find(odsPattern, "ODS", output)
	if err != nil {
		return Scores{}, err
	}
	ois, err := p.find(oisPattern, "OIS", output)
	if err != nil {
		return Scores{}, err
	}
	return Scores{ODS: ods, OIS: ois}, nil
}

func (p RegexParser) find(re *regexp.Regexp, name, output string) (float64, error) {
	m := re.FindStringSubmatch(output)
	if m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return v, nil
		}
	}
	if p.Strict {
		return 0, fmt.Errorf("%s: %w", name, ErrScoreNotFound)
	}
	return 0, nil
}
