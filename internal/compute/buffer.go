package compute

// Buffer is a fixed-length device-resident array of float64.
//
// The host reaches its contents only through Backend.Read and Backend.Write;
// kernels use View.
type Buffer struct {
	name     string
	data     []float64
	released bool
}

func (b *Buffer) Name() string { return b.name }
func (b *Buffer) Len() int     { return len(b.data) }

// View returns the device-side storage. It is meant for kernels only.
func (b *Buffer) View() []float64 { return b.data }
