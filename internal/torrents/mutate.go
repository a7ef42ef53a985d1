package torrents

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"uplink/internal/services"
)

// DeriveOptions controls the per-tracker torrent mutation.
type DeriveOptions struct {
	Tracker     string
	AnnounceURL string
	Source      string
	EntropyBits int // 0, 32, or 64
}

// VariantPath returns the fixed location of a tracker's derived torrent
// inside a release working directory.
func VariantPath(releaseDir, tracker string) string {
	return filepath.Join(releaseDir, "["+tracker+"].torrent")
}

// Derive rewrites a base torrent's container metadata into a tracker-specific
// variant written to outPath.
//
// Only whitelisted top-level keys survive: announce, info, created by, and
// creation date. The comment is always dropped so a private download link
// baked into a manually supplied base torrent cannot leak to another site.
// Inside info, source is overwritten and, when requested, a random entropy
// field is added to decorrelate the info-hash from sibling trackers. Without
// entropy the info dictionary is byte-identical across variants.
func Derive(basePath, outPath string, opts DeriveOptions) error {
	base, err := metainfo.LoadFromFile(basePath)
	if err != nil {
		return services.Wrap(services.ErrNotFound, opts.Tracker, "derive torrent", "load base torrent", err)
	}

	infoBytes, err := mutateInfo(base.InfoBytes, opts)
	if err != nil {
		return services.Wrap(nil, opts.Tracker, "derive torrent", "mutate info dictionary", err)
	}

	variant := metainfo.MetaInfo{
		Announce:     opts.AnnounceURL,
		InfoBytes:    infoBytes,
		CreatedBy:    base.CreatedBy,
		CreationDate: base.CreationDate,
	}

	if err := writeTorrent(outPath, &variant); err != nil {
		return services.Wrap(nil, opts.Tracker, "derive torrent", "write variant", err)
	}
	return nil
}

// Stamp rewrites the variant's comment with the tracker's own details URL and
// the live announce URL after a confirmed upload. The info dictionary is
// never touched here.
func Stamp(path, detailsURL, announceURL string) error {
	mi, err := metainfo.LoadFromFile(path)
	if err != nil {
		return fmt.Errorf("load torrent for stamping: %w", err)
	}
	mi.Comment = detailsURL
	if announceURL != "" {
		mi.Announce = announceURL
	}
	return writeTorrent(path, mi)
}

// InfoHash returns the hex info-hash of a torrent file.
func InfoHash(path string) (string, error) {
	mi, err := metainfo.LoadFromFile(path)
	if err != nil {
		return "", fmt.Errorf("load torrent: %w", err)
	}
	return mi.HashInfoBytes().HexString(), nil
}

// Comment returns the top-level comment of a torrent file, "" when absent.
func Comment(path string) (string, error) {
	mi, err := metainfo.LoadFromFile(path)
	if err != nil {
		return "", fmt.Errorf("load torrent: %w", err)
	}
	return mi.Comment, nil
}

// mutateInfo decodes the info dictionary into a key map so unknown keys
// survive the round trip, then applies the source and entropy mutations.
func mutateInfo(infoBytes bencode.Bytes, opts DeriveOptions) (bencode.Bytes, error) {
	var info map[string]any
	if err := bencode.Unmarshal(infoBytes, &info); err != nil {
		return nil, fmt.Errorf("decode info: %w", err)
	}
	if info == nil {
		return nil, fmt.Errorf("base torrent has no info dictionary")
	}

	if opts.Source != "" {
		info["source"] = opts.Source
	} else {
		delete(info, "source")
	}

	switch opts.EntropyBits {
	case 0:
		delete(info, "entropy")
	case 32, 64:
		value, err := randomEntropy(opts.EntropyBits)
		if err != nil {
			return nil, fmt.Errorf("generate entropy: %w", err)
		}
		info["entropy"] = value
	default:
		return nil, fmt.Errorf("unsupported entropy width %d", opts.EntropyBits)
	}

	encoded, err := bencode.Marshal(info)
	if err != nil {
		return nil, fmt.Errorf("encode info: %w", err)
	}
	return encoded, nil
}

func randomEntropy(bits int) (int64, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, err
	}
	value := binary.BigEndian.Uint64(buf[:])
	if bits == 32 {
		return int64(uint32(value)), nil
	}
	// Keep the value positive so every bencode integer decoder accepts it.
	return int64(value >> 1), nil
}

func writeTorrent(path string, mi *metainfo.MetaInfo) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure torrent directory: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create torrent file: %w", err)
	}
	if err := mi.Write(file); err != nil {
		file.Close()
		return fmt.Errorf("write torrent file: %w", err)
	}
	return file.Close()
}
