package service

import "strings"

// DefaultFloorLetter is the letter given below the lowest threshold when none is configured.
const DefaultFloorLetter = "E"

// percentageEpsilon absorbs floating point drift at band boundaries (e.g. 92.99999999999999).
const percentageEpsilon = 1e-9

type letterThreshold struct {
	min    float64
	letter string
}

// Descending, non-overlapping bands. Anything under the last band gets the floor letter.
var letterThresholds = []letterThreshold{
	{93, "A"},
	{90, "A-"},
	{87, "B+"},
	{83, "B"},
	{80, "B-"},
	{77, "C+"},
	{73, "C"},
	{70, "C-"},
	{67, "D+"},
	{63, "D"},
	{60, "D-"},
}

var gradePoints = map[string]float64{
	"A":  4.0,
	"A-": 3.7,
	"B+": 3.3,
	"B":  3.0,
	"B-": 2.7,
	"C+": 2.3,
	"C":  2.0,
	"C-": 1.7,
	"D+": 1.3,
	"D":  1.0,
	"D-": 0.7,
}

// GradeScale maps percentages to letters and letters to grade points.
type GradeScale struct {
	floor string
}

// NewGradeScale builds a scale whose bottom band is labelled floor ("E" or "F").
func NewGradeScale(floor string) GradeScale {
	floor = strings.ToUpper(strings.TrimSpace(floor))
	if floor == "" {
		floor = DefaultFloorLetter
	}
	return GradeScale{floor: floor}
}

// Floor returns the bottom band label.
func (s GradeScale) Floor() string {
	if s.floor == "" {
		return DefaultFloorLetter
	}
	return s.floor
}

// Letter converts a 0-100 percentage into a letter grade.
func (s GradeScale) Letter(percentage float64) string {
	for _, band := range letterThresholds {
		if percentage+percentageEpsilon >= band.min {
			return band.letter
		}
	}
	return s.Floor()
}

// Points returns the grade-point value of a letter. Both bottom band labels ("E" and "F") are
// worth 0.0 so grades stored under a previous floor setting still count.
func (s GradeScale) Points(letter string) (float64, bool) {
	letter = strings.ToUpper(strings.TrimSpace(letter))
	if letter == s.Floor() || letter == "E" || letter == "F" {
		return 0.0, true
	}
	points, ok := gradePoints[letter]
	return points, ok
}
