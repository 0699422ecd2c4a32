package cache

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// GTFLoader loads transcript models from GENCODE or Ensembl GTF files.
type GTFLoader struct {
	path string
}

// NewGTFLoader creates a new GTF loader.
func NewGTFLoader(path string) *GTFLoader {
	return &GTFLoader{path: path}
}

// Load loads all transcripts from the GTF file into the cache.
func (l *GTFLoader) Load(c *Cache) error {
	return l.loadGTF(c, "")
}

// LoadChromosome loads transcripts for a specific chromosome.
func (l *GTFLoader) LoadChromosome(c *Cache, chrom string) error {
	return l.loadGTF(c, chrom)
}

func (l *GTFLoader) loadGTF(c *Cache, filterChrom string) error {
	f, err := os.Open(l.path)
	if err != nil {
		return fmt.Errorf("open GTF file: %w", err)
	}
	defer f.Close()

	reader, closer, err := maybeGzip(f)
	if err != nil {
		return fmt.Errorf("open GTF file: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}

	transcripts, err := l.parseGTF(reader, filterChrom)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(transcripts))
	for id := range transcripts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c.AddTranscript(transcripts[id])
	}
	return nil
}

// maybeGzip wraps r in a gzip reader when it starts with the gzip magic bytes.
// BGZF files are valid multi-member gzip streams and are handled the same way.
func maybeGzip(r io.Reader) (io.Reader, io.Closer, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	magic, err := br.Peek(2)
	if err != nil && err != io.EOF {
		return nil, nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		gz, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("open gzip reader: %w", err)
		}
		return gz, gz, nil
	}
	return br, nil, nil
}

// gtfFeature is one parsed GTF line.
type gtfFeature struct {
	chrom       string
	featureType string
	start       int64
	end         int64
	strand      string
	phase       int // 0-2 for CDS features, -1 when "."
	attributes  map[string]string
}

// cdsRegion is a coding feature of a transcript. Phase is -1 for start and
// stop codon features.
type cdsRegion struct {
	start, end int64
	phase      int
}

// parseGTF parses GTF content and returns assembled transcripts keyed by ID.
func (l *GTFLoader) parseGTF(reader io.Reader, filterChrom string) (map[string]*Transcript, error) {
	scanner := bufio.NewScanner(reader)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	transcripts := make(map[string]*Transcript)
	exonsByTranscript := make(map[string][]Exon)
	cdsByTranscript := make(map[string][]cdsRegion)

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "#") || line == "" {
			continue
		}

		feat, err := l.parseLine(line)
		if err != nil {
			continue // malformed lines are skipped
		}
		if filterChrom != "" && feat.chrom != normalizeChrom(filterChrom) {
			continue
		}

		transcriptID := stripVersion(feat.attributes["transcript_id"])
		if transcriptID == "" {
			continue
		}

		switch feat.featureType {
		case "transcript":
			tags := feat.attributes["tag"]
			transcripts[transcriptID] = &Transcript{
				ID:           transcriptID,
				GeneID:       stripVersion(feat.attributes["gene_id"]),
				GeneName:     feat.attributes["gene_name"],
				Chrom:        feat.chrom,
				Start:        feat.start,
				End:          feat.end,
				Strand:       parseStrand(feat.strand),
				Biotype:      transcriptType(feat.attributes),
				IsCanonical:  strings.Contains(tags, "Ensembl_canonical"),
				IsMANESelect: strings.Contains(tags, "MANE_Select"),
			}

		case "exon":
			exonNum, _ := strconv.Atoi(feat.attributes["exon_number"])
			exonsByTranscript[transcriptID] = append(exonsByTranscript[transcriptID], Exon{
				Number: exonNum,
				Start:  feat.start,
				End:    feat.end,
				Frame:  -1,
			})

		case "CDS":
			cdsByTranscript[transcriptID] = append(cdsByTranscript[transcriptID], cdsRegion{feat.start, feat.end, feat.phase})

		case "start_codon", "stop_codon":
			// Stop codons sit outside GENCODE CDS features but are still coding.
			cdsByTranscript[transcriptID] = append(cdsByTranscript[transcriptID], cdsRegion{feat.start, feat.end, -1})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan GTF: %w", err)
	}

	for id, t := range transcripts {
		assembleTranscript(t, exonsByTranscript[id], cdsByTranscript[id])
	}
	return transcripts, nil
}

// assembleTranscript attaches exons sorted by genomic start, the CDS span and
// the coding portion and reading frame of every exon. Frames start from the
// phase of the 5'-most CDS feature, so incomplete 5' ends keep their offset.
func assembleTranscript(t *Transcript, exons []Exon, cds []cdsRegion) {
	sort.Slice(exons, func(i, j int) bool {
		return exons[i].Start < exons[j].Start
	})
	t.Exons = exons

	if len(cds) == 0 {
		return
	}
	t.CDSStart, t.CDSEnd = cds[0].start, cds[0].end
	for _, region := range cds[1:] {
		t.CDSStart = min(t.CDSStart, region.start)
		t.CDSEnd = max(t.CDSEnd, region.end)
	}

	for i := range exons {
		e := &exons[i]
		if e.End >= t.CDSStart && e.Start <= t.CDSEnd {
			e.CDSStart = max(e.Start, t.CDSStart)
			e.CDSEnd = min(e.End, t.CDSEnd)
		}
	}

	// Codon position of the first coding base in transcription order.
	firstCodonPos := int64((3 - startPhase(t, cds)) % 3)

	// Frames follow transcription order.
	var cdsPosition int64
	setFrame := func(e *Exon) {
		if !e.IsCoding() {
			return
		}
		e.Frame = int((3 - (cdsPosition+firstCodonPos)%3) % 3)
		cdsPosition += e.CDSEnd - e.CDSStart + 1
	}
	if t.IsReverseStrand() {
		for i := len(exons) - 1; i >= 0; i-- {
			setFrame(&exons[i])
		}
		return
	}
	for i := range exons {
		setFrame(&exons[i])
	}
}

// startPhase returns the GTF phase of the 5'-most CDS feature, or 0 when the
// transcript has none with a phase.
func startPhase(t *Transcript, cds []cdsRegion) int {
	phase := 0
	var first *cdsRegion
	for i := range cds {
		r := &cds[i]
		if r.phase < 0 {
			continue
		}
		if first == nil ||
			(t.IsReverseStrand() && r.end > first.end) ||
			(!t.IsReverseStrand() && r.start < first.start) {
			first = r
		}
	}
	if first != nil {
		phase = first.phase
	}
	return phase
}

// parseLine parses a single GTF line.
func (l *GTFLoader) parseLine(line string) (*gtfFeature, error) {
	fields := strings.Split(line, "\t")
	if len(fields) < 9 {
		return nil, fmt.Errorf("invalid GTF line: expected 9 fields, got %d", len(fields))
	}

	start, err := strconv.ParseInt(fields[3], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse start: %w", err)
	}
	end, err := strconv.ParseInt(fields[4], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse end: %w", err)
	}

	phase := -1
	if p, err := strconv.Atoi(fields[7]); err == nil && p >= 0 && p <= 2 {
		phase = p
	}

	return &gtfFeature{
		chrom:       normalizeChrom(fields[0]),
		featureType: fields[2],
		start:       start,
		end:         end,
		strand:      fields[6],
		phase:       phase,
		attributes:  parseAttributes(fields[8]),
	}, nil
}

// parseAttributes parses the GTF attribute column.
// Format: key "value"; key "value"; ...
// Repeated keys are joined with ',' so every tag survives.
func parseAttributes(attrStr string) map[string]string {
	attrs := make(map[string]string)
	for _, part := range strings.Split(attrStr, ";") {
		part = strings.TrimSpace(part)
		key, value, ok := strings.Cut(part, " ")
		if !ok {
			continue
		}
		value = strings.Trim(strings.TrimSpace(value), "\"")
		if prev, seen := attrs[key]; seen {
			value = prev + "," + value
		}
		attrs[key] = value
	}
	return attrs
}

// transcriptType returns the GENCODE transcript_type or the Ensembl transcript_biotype.
func transcriptType(attrs map[string]string) string {
	if v := attrs["transcript_type"]; v != "" {
		return v
	}
	return attrs["transcript_biotype"]
}

func parseStrand(s string) int8 {
	if s == "-" {
		return -1
	}
	return 1
}

// stripVersion removes the version suffix from an Ensembl ID.
// e.g., "ENST00000456328.2" -> "ENST00000456328"
func stripVersion(id string) string {
	if idx := strings.LastIndex(id, "."); idx != -1 {
		return id[:idx]
	}
	return id
}

// normalizeChrom removes the "chr" prefix so GENCODE ("chr1") and Ensembl or
// VCF ("1") names match.
func normalizeChrom(chrom string) string {
	if len(chrom) > 3 && strings.HasPrefix(chrom, "chr") {
		return chrom[3:]
	}
	return chrom
}
