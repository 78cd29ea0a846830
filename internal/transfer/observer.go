package transfer

// Observer receives cumulative byte counts. It is called synchronously from
// the transfer loop, first with (0, total) and then after every chunk.
type Observer interface {
	OnProgress(transferred, total uint64)
}

type ObserverFunc func(transferred, total uint64)

func (f ObserverFunc) OnProgress(transferred, total uint64) {
	f(transferred, total)
}

type nopObserver struct{}

func (nopObserver) OnProgress(uint64, uint64) {}
