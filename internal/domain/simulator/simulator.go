// Пакет simulator — подменяемая «работа» над заданиями.
//
// Вместо настоящего кодека Workspace спрашивает у Simulator приращение
// прогресса на каждом тике и размер результата при завершении сжатия.
// Реальный конвертер можно подключить, реализовав тот же интерфейс.
package simulator

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sync"

	"github.com/bigkaa/cloudfile/internal/domain/model"
)

// Step — результат одного тика для задания.
type Step struct {
	// Increment — приращение прогресса (> 0)
	Increment int
	// Err — смоделированный сбой; задание переходит в error
	Err error
}

// Simulator — источник приращений прогресса и размеров результата.
type Simulator interface {
	// Advance возвращает шаг для задания в статусе processing.
	Advance(job model.FileJob) Step
	// OutputSize возвращает размер результата сжатия.
	OutputSize(job model.FileJob) int64
}

// Options — параметры случайного симулятора.
type Options struct {
	// MinStep, MaxStep — диапазон приращения прогресса, включительно
	MinStep int
	MaxStep int
	// Ratio — доля исходного размера в результате
	Ratio float64
	// Jitter — верхняя граница случайного добавка к размеру (байты, не включительно)
	Jitter int64
	// FailureRate — вероятность сбоя на один шаг
	FailureRate float64
}

// DefaultOptions — параметры исходного поведения: +5..29% за тик, ~5% размера + до 50KB.
func DefaultOptions() Options {
	return Options{
		MinStep: 5,
		MaxStep: 29,
		Ratio:   0.05,
		Jitter:  50000,
	}
}

// Random — симулятор на псевдослучайных числах.
// Потокобезопасен: *rand.Rand защищён мьютексом.
type Random struct {
	opts Options

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandom создаёт симулятор со случайным сидом.
func NewRandom(opts Options) (*Random, error) {
	return NewRandomWithSeed(opts, rand.Uint64(), rand.Uint64())
}

// NewRandomWithSeed создаёт детерминированный симулятор (для тестов).
func NewRandomWithSeed(opts Options, seed1, seed2 uint64) (*Random, error) {
	if opts.MinStep < 1 || opts.MaxStep < opts.MinStep {
		return nil, fmt.Errorf("некорректный диапазон шага: %d..%d", opts.MinStep, opts.MaxStep)
	}
	if opts.Ratio <= 0 {
		return nil, fmt.Errorf("некорректная доля размера: %v", opts.Ratio)
	}
	if opts.Jitter < 0 {
		return nil, fmt.Errorf("отрицательный jitter: %d", opts.Jitter)
	}
	if opts.FailureRate < 0 || opts.FailureRate > 1 {
		return nil, fmt.Errorf("вероятность сбоя вне [0, 1]: %v", opts.FailureRate)
	}
	return &Random{
		opts: opts,
		rnd:  rand.New(rand.NewPCG(seed1, seed2)),
	}, nil
}

// Advance реализует Simulator.
func (s *Random) Advance(job model.FileJob) Step {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.opts.FailureRate > 0 && s.rnd.Float64() < s.opts.FailureRate {
		return Step{Err: fmt.Errorf("не удалось обработать %s: симулированный сбой на %d%%", job.Name, job.Progress)}
	}

	span := s.opts.MaxStep - s.opts.MinStep + 1
	return Step{Increment: s.opts.MinStep + s.rnd.IntN(span)}
}

// OutputSize реализует Simulator: floor(size*ratio + U[0,1)*jitter).
func (s *Random) OutputSize(job model.FileJob) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := float64(job.Size)*s.opts.Ratio + s.rnd.Float64()*float64(s.opts.Jitter)
	return int64(math.Floor(size))
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ Simulator = (*Random)(nil)
