// Command vfuzz feeds random documents to the decoders. A panic is a
// finding: the input is minimized and printed as a hex dump.
package main

import (
	crand "crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	mrand "math/rand"
	"os"
	"runtime"
	"sync"

	"github.com/dgryski/go-ddmin"
	ants "github.com/panjf2000/ants/v2"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/FyroxEngine/Fyrox-sub011/internal/log"
	"github.com/FyroxEngine/Fyrox-sub011/visitor"
)

var headers = [][]byte{
	append([]byte("FBAF"), 2, 0, 0, 0),
	[]byte("RG3D"),
	[]byte("FTAX:2;"),
	[]byte("FTAF"),
}

// decode reports whether decoding b panics.
func decode(b []byte) (panicked bool, msg string) {
	defer func() {
		if r := recover(); r != nil {
			panicked, msg = true, fmt.Sprint(r)
		}
	}()
	v, err := visitor.LoadFromMemory(b, visitor.WithLogger(zap.NewNop()))
	if err != nil {
		return false, ""
	}
	if _, err := visitor.LoadBinaryFromMemory(v.SaveBinaryToVec(), visitor.WithLogger(zap.NewNop())); err != nil {
		panic("reloading an encoded document: " + err.Error())
	}
	return false, ""
}

// randomDoc returns a random body behind one of the known headers. Binary
// bodies are biased towards small length prefixes so that decoding gets
// past the first name.
func randomDoc(rnd *mrand.Rand, maxLen int) []byte {
	h := headers[rnd.Intn(len(headers))]
	doc := append([]byte(nil), h...)
	if h[0] == 'F' && h[1] == 'T' {
		tokens := []string{" ", "__ROOT__", "[", "]", "{", "}", "0:", "1:", "2:", "X<u8:1>", "S<str:\"a\">", "<", ">", ";", "\""}
		for len(doc) < maxLen {
			doc = append(doc, tokens[rnd.Intn(len(tokens))]...)
		}
		return doc[:len(h)+rnd.Intn(len(doc)-len(h)+1)]
	}
	for len(doc) < maxLen {
		if rnd.Intn(3) == 0 {
			doc = binary.LittleEndian.AppendUint32(doc, uint32(rnd.Intn(4)))
			continue
		}
		b := make([]byte, 1+rnd.Intn(8))
		crand.Read(b)
		doc = append(doc, b...)
	}
	return doc
}

func minimize(b []byte) []byte {
	return ddmin.Minimize(b, func(d []byte) ddmin.Result {
		if panicked, _ := decode(d); panicked {
			return ddmin.Fail
		}
		return ddmin.Pass
	})
}

func run(args []string, stdout io.Writer) (findings int, err error) {
	fs := pflag.NewFlagSet("vfuzz", pflag.ContinueOnError)
	iterations := fs.IntP("iterations", "n", 100000, "number of documents to try; 0 runs forever")
	seed := fs.Int64("seed", 0, "random seed; 0 picks one")
	maxLen := fs.Int("max-len", 200, "maximum document length")
	verbose := fs.BoolP("verbose", "v", false, "print every document")
	workers := fs.IntP("workers", "j", runtime.NumCPU(), "number of decoding goroutines")
	if err := fs.Parse(args); err != nil {
		return 0, err
	}
	if *seed == 0 {
		var b [8]byte
		crand.Read(b[:])
		*seed = int64(binary.LittleEndian.Uint64(b[:]) >> 1)
	}
	log.Info("fuzzing", zap.Int64("seed", *seed), zap.Int("iterations", *iterations))

	pool, err := ants.NewPool(*workers, ants.WithPanicHandler(func(v any) {
		log.Error("fuzz worker panicked", zap.Any("panic", v))
	}))
	if err != nil {
		return 0, err
	}
	defer pool.Release()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	// documents are generated in order so that a seed reproduces a run
	rnd := mrand.New(mrand.NewSource(*seed))
	for i := 0; *iterations == 0 || i < *iterations; i++ {
		doc := randomDoc(rnd, *maxLen)
		if *verbose {
			mu.Lock()
			fmt.Fprintln(stdout, hex.Dump(doc))
			mu.Unlock()
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			panicked, msg := decode(doc)
			if !panicked {
				return
			}
			small := minimize(doc)
			mu.Lock()
			defer mu.Unlock()
			findings++
			log.Error("decoder panicked", zap.Int("iteration", i), zap.String("panic", msg), zap.Int("bytes", len(small)))
			fmt.Fprintf(stdout, "panic: %s\n%s\n", msg, hex.Dump(small))
		})
		if err != nil {
			wg.Done()
			wg.Wait()
			return findings, err
		}
	}
	wg.Wait()
	return findings, nil
}

func main() {
	findings, err := run(os.Args[1:], os.Stdout)
	if err != nil {
		if err == pflag.ErrHelp {
			return
		}
		fmt.Fprintln(os.Stderr, "vfuzz:", err)
		os.Exit(2)
	}
	if findings > 0 {
		os.Exit(1)
	}
}
