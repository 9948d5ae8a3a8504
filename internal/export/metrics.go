// Package export writes batch reports: predictions CSV, a summary and an XLSX workbook.
package export

import (
	"github.com/joseph-ayodele/docparse/constants"
	"github.com/joseph-ayodele/docparse/internal/entity"
)

// Summary aggregates a batch. Accuracy counts only rows whose true label is a known category.
type Summary struct {
	Images   int     `json:"images"`
	Labeled  int     `json:"known_label_images"`
	Failures int     `json:"failures"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

func Summarize(rows []entity.Prediction) Summary {
	var s Summary
	s.Images = len(rows)
	for _, r := range rows {
		if r.Error != "" {
			s.Failures++
		}
		if !r.Labeled() {
			continue
		}
		s.Labeled++
		if r.Correct() {
			s.Correct++
		}
	}
	if s.Labeled > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Labeled)
	}
	return s
}

// ConfusionMatrix counts labeled, successful rows as m[true][pred], indexed by constants.AllCategories order.
func ConfusionMatrix(rows []entity.Prediction) [][]int {
	cats := constants.AllCategories()
	idx := make(map[constants.Category]int, len(cats))
	for i, c := range cats {
		idx[c] = i
	}
	m := make([][]int, len(cats))
	for i := range m {
		m[i] = make([]int, len(cats))
	}
	for _, r := range rows {
		if r.Error != "" || !r.Labeled() {
			continue
		}
		want, _ := constants.ParseCategory(r.TrueLabel)
		got, ok := idx[r.PredLabel]
		if !ok {
			continue
		}
		m[idx[want]][got]++
	}
	return m
}
