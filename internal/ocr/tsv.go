package ocr

import (
	"strconv"
	"strings"
)

// tesseract TSV columns
const (
	colLevel = iota
	colPage
	colBlock
	colPar
	colLine
	colWord
	colLeft
	colTop
	colWidth
	colHeight
	colConf
	colText
	tsvColumns
)

const levelWord = 5

type lineKey struct {
	page, block, par, line int
}

// ParseTSV rebuilds line text and word boxes from tesseract TSV output.
// The header row, non-word rows and words with negative confidence are skipped.
func ParseTSV(tsv string) (string, []Box) {
	var (
		boxes []Box
		order []lineKey
		lines = make(map[lineKey][]string)
	)
	for i, row := range strings.Split(tsv, "\n") {
		row = strings.TrimRight(row, "\r")
		if i == 0 && strings.HasPrefix(row, "level") {
			continue
		}
		cols := strings.Split(row, "\t")
		if len(cols) < tsvColumns {
			continue
		}
		ints := make([]int, colConf)
		ok := true
		for c := colLevel; c < colConf; c++ {
			v, err := strconv.Atoi(strings.TrimSpace(cols[c]))
			if err != nil {
				ok = false
				break
			}
			ints[c] = v
		}
		if !ok || ints[colLevel] != levelWord {
			continue
		}
		conf, err := strconv.ParseFloat(strings.TrimSpace(cols[colConf]), 64)
		if err != nil || conf < 0 {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[colText:], "\t"))
		if text == "" {
			continue
		}

		boxes = append(boxes, Box{
			X:    ints[colLeft],
			Y:    ints[colTop],
			W:    ints[colWidth],
			H:    ints[colHeight],
			Text: text,
			Conf: clamp01(conf / 100),
		})

		key := lineKey{ints[colPage], ints[colBlock], ints[colPar], ints[colLine]}
		if _, seen := lines[key]; !seen {
			order = append(order, key)
		}
		lines[key] = append(lines[key], text)
	}

	var b strings.Builder
	var prev lineKey
	for i, key := range order {
		if i > 0 {
			b.WriteByte('\n')
			if key.block != prev.block || key.par != prev.par || key.page != prev.page {
				b.WriteByte('\n')
			}
		}
		b.WriteString(strings.Join(lines[key], " "))
		prev = key
	}
	return b.String(), boxes
}
