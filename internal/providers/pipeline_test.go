package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPipeline_RunsInOrder(t *testing.T) {
	var order []string
	stage := func(name string) NamedStage {
		return NamedStage{Name: name, Run: func(_ context.Context, acc Accumulator) (Accumulator, error) {
			order = append(order, name)
			acc.Upserted++
			return acc, nil
		}}
	}

	p := NewPipeline(stage("a"), stage("b"), stage("c"))
	acc, err := p.Process(context.Background(), Accumulator{})
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, order)
	require.Equal(t, 3, acc.Upserted)
}

func TestPipeline_StopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	var ran []string

	p := NewPipeline(
		NamedStage{Name: "first", Run: func(_ context.Context, acc Accumulator) (Accumulator, error) {
			ran = append(ran, "first")
			return acc, nil
		}},
		NamedStage{Name: "second", Run: func(_ context.Context, acc Accumulator) (Accumulator, error) {
			ran = append(ran, "second")
			acc.Upserted = 2
			return acc, boom
		}},
		NamedStage{Name: "third", Run: func(_ context.Context, acc Accumulator) (Accumulator, error) {
			ran = append(ran, "third")
			return acc, nil
		}},
	)

	acc, err := p.Process(context.Background(), Accumulator{})
	require.ErrorIs(t, err, boom)
	require.Contains(t, err.Error(), "stage second")
	require.Equal(t, []string{"first", "second"}, ran)
	require.Equal(t, 2, acc.Upserted)
}

func TestPipeline_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	p := NewPipeline(NamedStage{Name: "only", Run: func(_ context.Context, acc Accumulator) (Accumulator, error) {
		called = true
		return acc, nil
	}})

	_, err := p.Process(ctx, Accumulator{})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestPipeline_IsImmutable(t *testing.T) {
	stages := []NamedStage{{Name: "x", Run: func(_ context.Context, acc Accumulator) (Accumulator, error) { return acc, nil }}}
	p := NewPipeline(stages...)
	stages[0].Name = "mutated"

	require.Equal(t, []string{"x"}, p.Stages())
}
