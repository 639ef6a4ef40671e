// relax_stub.go — no-op cpuRelax without cgo or on other architectures
//
// Keeps the reader loop portable: builds with CGO_ENABLED=0, the noasm tag,
// or on RISC-V/PPC/WASM spin at full speed without a hint.

//go:build (!amd64 && !arm64) || !cgo || noasm

package timering

//go:nosplit
//go:inline
func cpuRelax() {}
