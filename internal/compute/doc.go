// Package compute provides the compute device used by the MD pipeline.
//
// A device owns named float64 buffers, builds programs made of kernels, and
// launches a kernel once per work item over a fixed work-item count:
//
//	dev, err := compute.Open(compute.CPU, 16)
//	buf, err := dev.Alloc("rx", n)
//	err = dev.Write(buf, host)
//	err = dev.Build(compute.NewProgram("md", "", kernels...))
//	err = dev.Launch(kernel)
//	err = dev.Read(buf, host)
//
// All operations are synchronous: they return after the device has finished.
// Kernels are expected to write only the slots owned by their work item, so a
// launch needs no locking.
package compute
