package vecstore

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// Binary snapshot format magic bytes and version.
var snapshotMagic = [4]byte{'A', 'V', 'E', 'C'}

const snapshotVersion uint32 = 1

// Save serializes the entire HNSW index to w in a compact binary format.
//
// Internal node IDs are preserved so that neighbor references remain valid
// after deserialization; deleted (free) slots are written as inactive
// markers to keep slot alignment.
//
// Layout (all integers little-endian):
//
//	[4B magic "AVEC"] [4B version]
//	[4B dim] [4B M] [4B efConstruction] [4B efSearch]
//	[4B numSlots] [4B activeCount] [4B maxLevel] [4B entryID]
//	[4B freeCount] [freeCount × 4B free IDs]
//	per slot: [1B active] then, if active:
//	  [4B idLen] [id bytes] [4B level] [dim × 4B vector]
//	  per layer 0..level: [4B numFriends] [numFriends × 4B friend IDs]
func (h *HNSW) Save(w io.Writer) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	bw := bufio.NewWriter(w)
	le := binary.LittleEndian

	if _, err := bw.Write(snapshotMagic[:]); err != nil {
		return fmt.Errorf("vecstore: save magic: %w", err)
	}

	header := []uint32{
		snapshotVersion,
		uint32(h.cfg.Dim),
		uint32(h.cfg.M),
		uint32(h.cfg.EfConstruction),
		uint32(h.cfg.EfSearch),
		uint32(len(h.nodes)),
		uint32(h.count),
		uint32(h.maxLevel),
		uint32(h.entryID),
		uint32(len(h.free)),
	}
	if err := binary.Write(bw, le, header); err != nil {
		return fmt.Errorf("vecstore: save header: %w", err)
	}
	if err := binary.Write(bw, le, h.free); err != nil {
		return fmt.Errorf("vecstore: save free list: %w", err)
	}

	for _, nd := range h.nodes {
		if nd == nil {
			if err := bw.WriteByte(0); err != nil {
				return err
			}
			continue
		}
		if err := bw.WriteByte(1); err != nil {
			return err
		}

		if err := binary.Write(bw, le, uint32(len(nd.id))); err != nil {
			return err
		}
		if _, err := bw.WriteString(nd.id); err != nil {
			return err
		}
		if err := binary.Write(bw, le, uint32(nd.level)); err != nil {
			return err
		}
		if err := binary.Write(bw, le, nd.vector); err != nil {
			return err
		}

		for lev := 0; lev <= nd.level; lev++ {
			var friends []uint32
			if lev < len(nd.friends) {
				friends = nd.friends[lev]
			}
			if err := binary.Write(bw, le, uint32(len(friends))); err != nil {
				return err
			}
			if err := binary.Write(bw, le, friends); err != nil {
				return err
			}
		}
	}

	return bw.Flush()
}

// LoadHNSW deserializes an HNSW index from r. The returned index is ready
// for immediate use.
func LoadHNSW(r io.Reader) (*HNSW, error) {
	br := bufio.NewReader(r)
	le := binary.LittleEndian

	var magic [4]byte
	if _, err := io.ReadFull(br, magic[:]); err != nil {
		return nil, fmt.Errorf("vecstore: load magic: %w", err)
	}
	if magic != snapshotMagic {
		return nil, fmt.Errorf("vecstore: invalid magic %q", magic[:])
	}

	var header [10]uint32
	if err := binary.Read(br, le, &header); err != nil {
		return nil, fmt.Errorf("vecstore: load header: %w", err)
	}
	version := header[0]
	if version != snapshotVersion {
		return nil, fmt.Errorf("vecstore: unsupported snapshot version %d (want %d)", version, snapshotVersion)
	}
	dim := header[1]
	if dim == 0 {
		return nil, fmt.Errorf("vecstore: invalid dimension 0 in snapshot")
	}
	numSlots, activeCount := header[5], header[6]
	maxLev := header[7]
	entryID := int32(header[8])
	freeCount := header[9]

	if freeCount > numSlots {
		return nil, fmt.Errorf("vecstore: free list larger than slot table (%d > %d)", freeCount, numSlots)
	}
	free := make([]uint32, freeCount)
	if err := binary.Read(br, le, free); err != nil {
		return nil, fmt.Errorf("vecstore: load free list: %w", err)
	}
	for _, id := range free {
		if id >= numSlots {
			return nil, fmt.Errorf("vecstore: free ID %d out of range (%d slots)", id, numSlots)
		}
	}

	nodes := make([]*hnswNode, numSlots)
	idMap := make(map[string]uint32, activeCount)

	for i := uint32(0); i < numSlots; i++ {
		active, err := br.ReadByte()
		if err != nil {
			return nil, err
		}
		if active == 0 {
			continue
		}

		var idLen uint32
		if err := binary.Read(br, le, &idLen); err != nil {
			return nil, err
		}
		idBytes := make([]byte, idLen)
		if _, err := io.ReadFull(br, idBytes); err != nil {
			return nil, err
		}

		var level uint32
		if err := binary.Read(br, le, &level); err != nil {
			return nil, err
		}
		if level > maxLev {
			return nil, fmt.Errorf("vecstore: node level %d above graph max %d", level, maxLev)
		}

		vec := make([]float32, dim)
		if err := binary.Read(br, le, vec); err != nil {
			return nil, err
		}

		friends := make([][]uint32, level+1)
		for lev := uint32(0); lev <= level; lev++ {
			var nf uint32
			if err := binary.Read(br, le, &nf); err != nil {
				return nil, err
			}
			if nf > numSlots {
				return nil, fmt.Errorf("vecstore: friend count %d exceeds slot table (%d slots)", nf, numSlots)
			}
			if nf > 0 {
				friends[lev] = make([]uint32, nf)
				if err := binary.Read(br, le, friends[lev]); err != nil {
					return nil, err
				}
				for _, f := range friends[lev] {
					if f >= numSlots {
						return nil, fmt.Errorf("vecstore: friend ID %d out of range (%d slots)", f, numSlots)
					}
				}
			}
		}

		nd := &hnswNode{
			id:      string(idBytes),
			vector:  vec,
			level:   int(level),
			friends: friends,
		}
		nodes[i] = nd
		idMap[nd.id] = i
	}

	if activeCount > 0 {
		if entryID < 0 || uint32(entryID) >= numSlots || nodes[entryID] == nil {
			return nil, fmt.Errorf("vecstore: entry point %d invalid (%d slots)", entryID, numSlots)
		}
	}

	cfg := HNSWConfig{
		Dim:            int(dim),
		M:              int(header[2]),
		EfConstruction: int(header[3]),
		EfSearch:       int(header[4]),
	}
	cfg.setDefaults() // clamp M < 2 to avoid log(1)=0

	return &HNSW{
		cfg:      cfg,
		nodes:    nodes,
		idMap:    idMap,
		entryID:  entryID,
		maxLevel: int(maxLev),
		count:    int(activeCount),
		free:     free,
		levelMul: 1.0 / math.Log(float64(cfg.M)),
	}, nil
}
