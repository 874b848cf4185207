package outbuf

import "sync"

// blockPools menyimpan satu pool per ukuran blok. Pool dipakai bersama oleh
// semua Builder dalam proses, sehingga buffer read-back dari Close satu
// builder dapat dipakai ulang oleh builder berikutnya.
var blockPools sync.Map // int -> *sync.Pool

func blockPool(size int) *sync.Pool {
	if p, ok := blockPools.Load(size); ok {
		return p.(*sync.Pool)
	}
	p, _ := blockPools.LoadOrStore(size, &sync.Pool{
		New: func() any {
			buf := make([]byte, size)
			return &buf
		},
	})
	return p.(*sync.Pool)
}

// getBufFromPool meminjam buffer sebesar satu blok untuk membaca kembali blok
// yang di-spill.
func (b *Builder) getBufFromPool() *[]byte {
	return b.bufPool.Get().(*[]byte)
}

// returnBufToPool mengembalikan buffer blok pinjaman. Buffer dengan panjang
// selain BlockSize dibuang.
func (b *Builder) returnBufToPool(buf *[]byte) {
	if len(*buf) == b.opts.BlockSize {
		b.bufPool.Put(buf)
	}
}
