package chimera

import (
	"fmt"

	"github.com/grailbio/hts/sam"
)

var (
	chr1, _   = sam.NewReference("chr1", "", "", 100000, nil, nil)
	chr2, _   = sam.NewReference("chr2", "", "", 100000, nil, nil)
	header, _ = sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
)

func newAux(name string, val interface{}) sam.Aux {
	aux, err := sam.NewAux(sam.NewTag(name), val)
	if err != nil {
		panic(fmt.Sprintf("error creating %s %v tag: %v", name, val, err))
	}
	return aux
}

func newRecord(name string, ref *sam.Reference, pos, length int, aux ...sam.Aux) *sam.Record {
	r := sam.GetFromFreePool()
	r.Name = name
	r.Ref = ref
	r.Pos = pos
	r.MatePos = -1
	r.Cigar = sam.Cigar{sam.NewCigarOp(sam.CigarMatch, length)}
	r.AuxFields = append(r.AuxFields, aux...)
	return r
}

// newDiscordant creates a record tagged with strand and orientation.
func newDiscordant(name string, ref *sam.Reference, pos, length int, strand byte, orientation string) *sam.Record {
	return newRecord(name, ref, pos, length,
		newAux("XS", sam.ASCII(strand)),
		newAux("XO", orientation))
}

// candidateSlice collects candidates written by a stage.
type candidateSlice []*Candidate

func (s *candidateSlice) Write(c *Candidate) error {
	*s = append(*s, c)
	return nil
}
