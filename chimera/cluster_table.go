package chimera

import (
	"io"
	"strings"

	"github.com/grailbio/base/tsv"
	"github.com/pkg/errors"
)

// ClusterWriter writes Cluster rows as TSV, one cluster per line:
//
//   ref start end id strand count orientation names
//
// names is the comma-separated list of member read names.
type ClusterWriter struct {
	w *tsv.Writer
}

// NewClusterWriter creates a ClusterWriter on w.
func NewClusterWriter(w io.Writer) *ClusterWriter {
	return &ClusterWriter{w: tsv.NewWriter(w)}
}

// Write adds one row.
func (w *ClusterWriter) Write(c Cluster) error {
	w.w.WriteString(c.Ref)
	w.w.WriteInt64(int64(c.Start))
	w.w.WriteInt64(int64(c.End))
	w.w.WriteInt64(int64(c.ID))
	w.w.WriteString(c.Strand.String())
	w.w.WriteInt64(int64(len(c.Members)))
	w.w.WriteString(c.Orientation.String())
	w.w.WriteString(strings.Join(c.Members, ","))
	return w.w.EndLine()
}

// Flush must be called after the last Write.
func (w *ClusterWriter) Flush() error { return w.w.Flush() }

type clusterRow struct {
	Ref         string
	Start       int
	End         int
	ID          int64
	Strand      string
	Count       int
	Orientation string
	Names       string
}

// ReadClusters parses a table written by ClusterWriter. path is used only in
// error messages.
func ReadClusters(in io.Reader, path string) ([]Cluster, error) {
	r := tsv.NewReader(in)
	var clusters []Cluster
	for line := 1; ; line++ {
		var row clusterRow
		if err := r.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, &MalformedRecordError{Path: path, Line: line, Err: err}
		}
		c := Cluster{Ref: row.Ref, Start: row.Start, End: row.End, ID: ClusterID(row.ID)}
		switch row.Strand {
		case "+":
			c.Strand = Forward
		case "-":
			c.Strand = Reverse
		default:
			return nil, &MalformedRecordError{Path: path, Line: line, Record: row.Strand, Err: errors.New("bad strand")}
		}
		switch row.Orientation {
		case "5p":
			c.Orientation = FivePrime
		case "3p":
			c.Orientation = ThreePrime
		default:
			return nil, &MalformedRecordError{Path: path, Line: line, Record: row.Orientation, Err: errors.New("bad orientation")}
		}
		if row.Names != "" {
			c.Members = strings.Split(row.Names, ",")
		}
		if len(c.Members) != row.Count {
			return nil, &MalformedRecordError{Path: path, Line: line, Record: row.Names,
				Err: errors.Errorf("count %d does not match %d names", row.Count, len(c.Members))}
		}
		clusters = append(clusters, c)
	}
	return clusters, nil
}
