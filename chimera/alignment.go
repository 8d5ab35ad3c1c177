package chimera

import (
	"fmt"
	"io"
	"strconv"

	"github.com/grailbio/hts/sam"
	"github.com/pkg/errors"
)

// Strand is the genomic strand of a discordant alignment.
type Strand uint8

const (
	Forward Strand = iota
	Reverse
)

func (s Strand) String() string {
	if s == Reverse {
		return "-"
	}
	return "+"
}

// Orientation tells whether an alignment belongs to the 5' or the 3' partner
// of a putative chimera.
type Orientation uint8

const (
	FivePrime Orientation = iota
	ThreePrime
)

func (o Orientation) String() string {
	if o == ThreePrime {
		return "3p"
	}
	return "5p"
}

// ClusterID is a run-wide sequence number assigned to a Cluster.
type ClusterID int64

var (
	// strandTag holds the genomic strand, '+' or '-'.
	strandTag = sam.Tag{'X', 'S'}
	// orientationTag holds the partner orientation, 5' or 3'.
	orientationTag = sam.Tag{'X', 'O'}
	// ClusterTag is written on every clustered record.
	ClusterTag = sam.Tag{'X', 'C'}
	hitsTag    = sam.Tag{'N', 'H'}
	editTag    = sam.Tag{'N', 'M'}
	mdTag      = sam.Tag{'M', 'D'}
)

// Alignment is an alignment record plus the annotations decoded from its
// tags. The annotations are decoded once, by NewAlignment, and are not
// changed afterwards. ClusterID is set once by ClusterLocus.
type Alignment struct {
	Rec         *sam.Record
	Strand      Strand
	Orientation Orientation
	// NumHits is the number of equally good alignments of the read (NH tag).
	NumHits   int
	ClusterID ClusterID
}

// RecordReader is a stream of alignment records. *bam.Reader and
// *sam.Reader implement it. Read returns io.EOF at the end.
type RecordReader interface {
	Read() (*sam.Record, error)
}

// RecordWriter accepts alignment records. *bam.Writer and *sam.Writer
// implement it.
type RecordWriter interface {
	Write(r *sam.Record) error
}

// SliceReader is a RecordReader over in-memory records.
type SliceReader struct {
	recs []*sam.Record
}

// NewSliceReader creates a RecordReader that yields recs in order.
func NewSliceReader(recs []*sam.Record) *SliceReader { return &SliceReader{recs: recs} }

// Read implements RecordReader.
func (r *SliceReader) Read() (*sam.Record, error) {
	if len(r.recs) == 0 {
		return nil, io.EOF
	}
	rec := r.recs[0]
	r.recs = r.recs[1:]
	return rec, nil
}

func refName(r *sam.Record) string {
	if r.Ref == nil {
		return "*"
	}
	return r.Ref.Name()
}

func malformedAlignment(r *sam.Record, format string, args ...interface{}) error {
	return &MalformedRecordError{Record: r.Name, Err: fmt.Errorf(format, args...)}
}

// NewAlignment decodes the strand, orientation and multimapping tags of r.
// Unmapped records and records without strand or orientation tags are
// malformed.
func NewAlignment(r *sam.Record) (*Alignment, error) {
	if r.Ref == nil || r.Pos < 0 || r.Flags&sam.Unmapped != 0 {
		return nil, malformedAlignment(r, "unmapped discordant record")
	}
	a := &Alignment{Rec: r, NumHits: 1, ClusterID: -1}
	aux := r.AuxFields.Get(strandTag)
	if aux == nil {
		return nil, malformedAlignment(r, "missing %s tag", strandTag)
	}
	switch auxString(aux) {
	case "+":
		a.Strand = Forward
	case "-":
		a.Strand = Reverse
	default:
		return nil, malformedAlignment(r, "bad %s value %v", strandTag, aux.Value())
	}
	if aux = r.AuxFields.Get(orientationTag); aux == nil {
		return nil, malformedAlignment(r, "missing %s tag", orientationTag)
	}
	switch auxString(aux) {
	case "0", "5", "5p":
		a.Orientation = FivePrime
	case "1", "3", "3p":
		a.Orientation = ThreePrime
	default:
		return nil, malformedAlignment(r, "bad %s value %v", orientationTag, aux.Value())
	}
	if aux = r.AuxFields.Get(hitsTag); aux != nil {
		n, ok := intValue(aux.Value())
		if !ok || n <= 0 {
			return nil, malformedAlignment(r, "bad %s value %v", hitsTag, aux.Value())
		}
		a.NumHits = n
	}
	return a, nil
}

// SetCluster records the cluster id in a and in the XC tag of the record. An
// existing XC tag is replaced. Ids that do not fit a BAM integer tag are
// rejected and leave a unchanged.
func (a *Alignment) SetCluster(id ClusterID) error {
	aux, err := sam.NewAux(ClusterTag, int(id))
	if err != nil {
		return errors.Wrapf(err, "cluster id %d of %s", id, a.Rec.Name)
	}
	a.ClusterID = id
	for i, f := range a.Rec.AuxFields {
		if f.Tag() == ClusterTag {
			a.Rec.AuxFields[i] = aux
			return nil
		}
	}
	a.Rec.AuxFields = append(a.Rec.AuxFields, aux)
	return nil
}

// auxString renders a char, string or integer aux value as a string.
func auxString(aux sam.Aux) string {
	switch aux.Type() {
	case 'A':
		return string(aux[3:4])
	case 'Z':
		return aux.Value().(string)
	}
	if n, ok := intValue(aux.Value()); ok {
		return strconv.Itoa(n)
	}
	return ""
}

func intValue(v interface{}) (int, bool) {
	switch x := v.(type) {
	case int8:
		return int(x), true
	case uint8:
		return int(x), true
	case int16:
		return int(x), true
	case uint16:
		return int(x), true
	case int32:
		return int(x), true
	case uint32:
		return int(x), true
	case int:
		return x, true
	}
	return 0, false
}
