package reader

import (
	"bufio"
	"io"
	"strings"

	"github.com/conorfennell/knolimport/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	tagsPrefix     = "T:"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingContext
	readingTags
)

// ReadMarkdown extracts Q:/A:/C: blocks as records with the fields
// [question, answer, context]. A "T:" line sets the record's tags. Blocks end
// at a "---" separator or at the next "Q:".
func ReadMarkdown(r io.Reader) ([]domain.ForeignRecord, error) {
	scanner := bufio.NewScanner(r)
	var records []domain.ForeignRecord
	var question, answer, context, tags string
	var block []string
	current := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.TrimRight(strings.Join(block, "\n"), "\n")
		switch current {
		case readingQuestion:
			question = content
		case readingAnswer:
			answer = content
		case readingContext:
			context = content
		}
		block = nil
	}
	finishRecord := func() {
		flushBlock()
		if question != "" {
			records = append(records, domain.ForeignRecord{
				Fields: []string{question, answer, context},
				Tags:   tags,
			})
		}
		question, answer, context, tags = "", "", "", ""
		current = seeking
	}

	for scanner.Scan() {
		line := scanner.Text()

		if line == "---" {
			finishRecord()
			continue
		}

		switch {
		case strings.HasPrefix(line, questionPrefix):
			// A new question always starts a new record.
			if current != seeking {
				finishRecord()
			}
			flushBlock()
			current = readingQuestion
			block = append(block, trimPrefix(line, questionPrefix))
		case strings.HasPrefix(line, answerPrefix):
			flushBlock()
			current = readingAnswer
			block = append(block, trimPrefix(line, answerPrefix))
		case strings.HasPrefix(line, contextPrefix):
			flushBlock()
			current = readingContext
			block = append(block, trimPrefix(line, contextPrefix))
		case strings.HasPrefix(line, tagsPrefix) && current != seeking:
			flushBlock()
			tags = strings.TrimSpace(line[len(tagsPrefix):])
			current = readingTags
		case current != seeking && current != readingTags:
			block = append(block, line)
		}
	}

	finishRecord()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func trimPrefix(line, prefix string) string {
	return strings.TrimPrefix(line[len(prefix):], " ")
}
