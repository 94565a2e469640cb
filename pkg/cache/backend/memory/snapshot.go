package memory

import (
	"bytes"
	"io"
	"os"
	"time"
)

func nowFunc() time.Time { return time.Now() }

func bytesReader(data []byte) io.Reader { return bytes.NewReader(data) }

func readFile(path string) ([]byte, error) { return os.ReadFile(path) }
