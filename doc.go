// Package outbuf menyediakan output builder untuk dokumen biner besar (misalnya
// PDF) yang ditulis secara tidak berurutan, sementara sink tujuan hanya mampu
// menerima penulisan berurutan.
//
// Produsen membuat fragment, menyisipkan fragment baru sebelum fragment yang
// sudah ada, dan menulis ke fragment manapun dalam urutan bebas. Fragment kecil
// tetap di memori; fragment besar di-spill ke scratch file berbasis blok. Offset
// akhir setiap fragment dapat dihitung sebelum Close, dan Close menggabungkan
// semua fragment ke sink sesuai urutan sequencer.
//
// The library is organised into several files for clarity:
//
//	options.go     – configuration struct & defaults
//	config.go      – loading options from toml/yaml/json files
//	output.go      – OutputBuilder contract & FragmentID
//	errors.go      – sentinel errors & contract violations
//	fragment.go    – fragment record & storage state
//	sequencer.go   – linked order of fragments (arena + index links)
//	budget.go      – memory budget shared by all fragments
//	segment.go     – block-addressed scratch storage (file)
//	segment_mmap.go – memory-mapped scratch storage
//	buffer.go      – pooled block buffers
//	builder.go     – Builder facade & spill policy
//	assemble.go    – position resolution & final assembly
//	stats.go       – lightweight stats accessors
//	metrics.go     – prometheus collectors
//	discard.go, passthrough.go – degenerate builders
//	tracker.go, measure.go     – observing decorators
//
// Builder tidak aman untuk goroutine: semua operasi harus dipanggil dari satu
// urutan logis.
package outbuf
