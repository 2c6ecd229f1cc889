package vbp

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

const instanceFileMode os.FileMode = 0o644

// WriteInstance serializes inst in the VBP layout:
//
//	<dimensions>
//	<cap_0> ... <cap_{D-1}>
//	<items>
//	<item_0_dim_0> ... <item_0_dim_{D-1}>
//	...
//
// The item count line is the number of item lines that follow.
func WriteInstance(w io.Writer, inst *Instance) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d\n", inst.NumDimensions())
	writeRow(bw, inst.Capacities)
	fmt.Fprintf(bw, "%d\n", inst.NumItems())
	for _, item := range inst.Items {
		writeRow(bw, item)
	}
	return bw.Flush()
}

func writeRow(w *bufio.Writer, row []int) {
	for i, v := range row {
		if i > 0 {
			w.WriteByte(' ')
		}
		w.WriteString(strconv.Itoa(v))
	}
	w.WriteByte('\n')
}

// Writer persists instances on a filesystem. The destination directory must
// already exist; content is staged in a temporary file next to the
// destination and renamed over it once complete.
type Writer struct {
	Fs afero.Fs
}

func NewWriter(fs afero.Fs) *Writer {
	return &Writer{Fs: fs}
}

func (w *Writer) Write(inst *Instance, path string) (err error) {
	dir := filepath.Dir(path)
	ok, err := afero.DirExists(w.Fs, dir)
	if err != nil {
		return fmt.Errorf("%w: checking %s: %v", ErrIO, dir, err)
	}
	if !ok {
		return fmt.Errorf("%w: directory %s does not exist", ErrIO, dir)
	}

	tmp, err := afero.TempFile(w.Fs, dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("%w: creating temporary file in %s: %v", ErrIO, dir, err)
	}
	defer func() {
		if err != nil {
			w.Fs.Remove(tmp.Name())
		}
	}()

	if err = WriteInstance(tmp, inst); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: writing %s: %v", ErrIO, path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("%w: closing %s: %v", ErrIO, path, err)
	}
	if err = w.Fs.Chmod(tmp.Name(), instanceFileMode); err != nil {
		return fmt.Errorf("%w: chmod %s: %v", ErrIO, path, err)
	}
	if err = w.Fs.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("%w: renaming into %s: %v", ErrIO, path, err)
	}
	return nil
}

var listPunctuation = strings.NewReplacer("[", " ", "]", " ", ",", " ")

type instanceParser struct {
	scanner *bufio.Scanner
	line    int
	inst    *Instance
	dims    int
	count   int
}

// maxItemHint caps the capacity reserved from the header item count.
const maxItemHint = 1 << 16

func firstError(steps ...func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

// nextFields returns the fields of the next non-blank line, or nil at EOF.
func (p *instanceParser) nextFields() ([]string, error) {
	for p.scanner.Scan() {
		p.line++
		line := listPunctuation.Replace(p.scanner.Text())
		if fields := strings.Fields(line); len(fields) > 0 {
			return fields, nil
		}
	}
	return nil, p.scanner.Err()
}

func (p *instanceParser) positiveInts(fields []string, what string) ([]int, error) {
	values := make([]int, len(fields))
	for i, tok := range fields {
		v, err := strconv.Atoi(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d (%s): %v", ErrMalformed, p.line, what, err)
		}
		if v <= 0 {
			return nil, fmt.Errorf("%w: line %d (%s): value %d is not positive", ErrMalformed, p.line, what, v)
		}
		values[i] = v
	}
	return values, nil
}

func (p *instanceParser) singleInt(what string) (int, error) {
	fields, err := p.nextFields()
	if err != nil {
		return 0, fmt.Errorf("%w: reading %s: %v", ErrMalformed, what, err)
	}
	if len(fields) != 1 {
		return 0, fmt.Errorf("%w: line %d: expected %s, got %q", ErrMalformed, p.line, what, strings.Join(fields, " "))
	}
	v, err := strconv.Atoi(fields[0])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: line %d: invalid %s %q", ErrMalformed, p.line, what, fields[0])
	}
	return v, nil
}

func (p *instanceParser) parseDimensions() error {
	dims, err := p.singleInt("dimension count")
	if err != nil {
		return err
	}
	if dims == 0 {
		return fmt.Errorf("%w: line %d: dimension count must be positive", ErrMalformed, p.line)
	}
	p.dims = dims
	return nil
}

func (p *instanceParser) parseCapacities() error {
	fields, err := p.nextFields()
	if err != nil {
		return fmt.Errorf("%w: reading capacities: %v", ErrMalformed, err)
	}
	if len(fields) != p.dims {
		return fmt.Errorf("%w: line %d: expected %d capacities, got %d", ErrMalformed, p.line, p.dims, len(fields))
	}
	p.inst.Capacities, err = p.positiveInts(fields, "capacities")
	return err
}

func (p *instanceParser) parseItemCount() (err error) {
	p.count, err = p.singleInt("item count")
	return err
}

func (p *instanceParser) parseItems() error {
	p.inst.Items = make([][]int, 0, min(p.count, maxItemHint))
	for {
		fields, err := p.nextFields()
		if err != nil {
			return fmt.Errorf("%w: reading item %d: %v", ErrMalformed, len(p.inst.Items), err)
		}
		if fields == nil {
			break
		}
		if len(fields) != len(p.inst.Capacities) {
			return fmt.Errorf("%w: line %d: item %d has %d sizes, want %d",
				ErrMalformed, p.line, len(p.inst.Items), len(fields), len(p.inst.Capacities))
		}
		item, err := p.positiveInts(fields, fmt.Sprintf("item %d", len(p.inst.Items)))
		if err != nil {
			return err
		}
		p.inst.Items = append(p.inst.Items, item)
	}
	if len(p.inst.Items) != p.count {
		return fmt.Errorf("%w: header declares %d items, found %d", ErrMalformed, p.count, len(p.inst.Items))
	}
	return nil
}

// ParseInstance reads an instance in the layout produced by WriteInstance.
// Trailing spaces and blank lines are tolerated, as is a capacity line written
// as a bracketed list.
func ParseInstance(r io.Reader) (*Instance, error) {
	p := &instanceParser{
		scanner: bufio.NewScanner(r),
		inst:    new(Instance),
	}
	err := firstError(
		p.parseDimensions,
		p.parseCapacities,
		p.parseItemCount,
		p.parseItems,
	)
	if err != nil {
		return nil, err
	}
	return p.inst, nil
}

func LoadInstance(fs afero.Fs, filename string) (*Instance, error) {
	file, err := fs.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	defer file.Close()

	inst, err := ParseInstance(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return inst, nil
}
