package termstore

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// LoadLexicon 以只读 mmap 读取词表：每行一个词，忽略空行与 # 注释行。
func LoadLexicon(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("termstore: lexicon: %w", err)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("termstore: lexicon: %w", err)
	}
	if fi.Size() == 0 {
		// 空文件无法映射
		return nil, nil
	}
	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("termstore: mmap %s: %w", path, err)
	}
	defer m.Unmap()

	var out []string
	sc := bufio.NewScanner(bytes.NewReader(m))
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		// 拷贝：映射在返回前解除
		out = append(out, string(line))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("termstore: lexicon %s: %w", path, err)
	}
	return out, nil
}
