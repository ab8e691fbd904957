package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ewangclarkson/news-aggregator-app/internal/models"
)

// Accumulator значение, которое стадии передают друг другу.
type Accumulator struct {
	Payload  []byte
	Items    []json.RawMessage
	Articles []models.Article
	Upserted int
}

// Stage одно преобразование аккумулятора.
type Stage func(ctx context.Context, acc Accumulator) (Accumulator, error)

type NamedStage struct {
	Name string
	Run  Stage
}

// Pipeline упорядоченный неизменяемый список стадий.
type Pipeline struct {
	stages []NamedStage
}

func NewPipeline(stages ...NamedStage) *Pipeline {
	return &Pipeline{stages: append([]NamedStage(nil), stages...)}
}

// Stages возвращает имена стадий в порядке выполнения.
func (p *Pipeline) Stages() []string {
	names := make([]string, len(p.stages))
	for i, s := range p.stages {
		names[i] = s.Name
	}
	return names
}

// Process прогоняет аккумулятор через стадии строго по порядку.
// Ошибка любой стадии завершает весь конвейер; возвращается аккумулятор
// упавшей стадии, чтобы было видно, сколько успели сохранить.
func (p *Pipeline) Process(ctx context.Context, initial Accumulator) (Accumulator, error) {
	acc := initial
	for _, s := range p.stages {
		if err := ctx.Err(); err != nil {
			return acc, fmt.Errorf("stage %s: %w", s.Name, err)
		}
		next, err := s.Run(ctx, acc)
		if err != nil {
			return next, fmt.Errorf("stage %s: %w", s.Name, err)
		}
		acc = next
	}
	return acc, nil
}
