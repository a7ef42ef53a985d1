package describe

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"uplink/internal/release"
)

func languageBlock(meta *release.Meta) string {
	audio := release.LanguageNames(meta.AudioLangs)
	subs := release.LanguageNames(meta.SubtitleLangs)
	if len(audio) == 0 && len(subs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("[b]")
	if len(audio) > 0 {
		b.WriteString("Audio: ")
		b.WriteString(strings.Join(audio, ", "))
	}
	if len(subs) > 0 {
		if len(audio) > 0 {
			b.WriteString(" | ")
		}
		b.WriteString("Subtitles: ")
		b.WriteString(strings.Join(subs, ", "))
	}
	b.WriteString("[/b]")
	return b.String()
}

// techBlock returns the technical-info section for one bucket: the extracted
// mediainfo text for file releases, the BD-info summary for disc releases.
func techBlock(meta *release.Meta, index int) string {
	if len(meta.Discs) > 0 {
		if index >= len(meta.Discs) {
			return ""
		}
		disc := meta.Discs[index]
		if strings.TrimSpace(disc.Summary) == "" {
			return ""
		}
		label := disc.Label
		if label == "" {
			label = fmt.Sprintf("Disc %d", index+1)
		}
		return "[hide=" + label + "][code]" + strings.TrimSpace(disc.Summary) + "[/code][/hide]"
	}

	if index == 0 {
		if strings.TrimSpace(meta.MediaInfo) == "" {
			return ""
		}
		return "[hide=MediaInfo][code]" + strings.TrimSpace(meta.MediaInfo) + "[/code][/hide]"
	}
	if index >= len(meta.Files) {
		return ""
	}
	return "[b]" + filepath.Base(meta.Files[index].Path) + "[/b]"
}

func screenGrid(images []release.Image, perRow, thumbWidth int) string {
	if len(images) == 0 {
		return ""
	}
	if perRow <= 0 {
		perRow = len(images)
	}
	var b strings.Builder
	b.WriteString("[center]")
	for i, img := range images {
		if i > 0 && i%perRow == 0 {
			b.WriteByte('\n')
		}
		target := img.WebURL
		if target == "" {
			target = img.RawURL
		}
		b.WriteString("[url=")
		b.WriteString(target)
		b.WriteString("][img=")
		b.WriteString(strconv.Itoa(thumbWidth))
		b.WriteString("]")
		b.WriteString(img.ImgURL)
		b.WriteString("[/img][/url]")
	}
	b.WriteString("[/center]")
	return b.String()
}

// otherFilesSpoiler lists the files beyond the processed-file ceiling so the
// description still accounts for the whole pack.
func otherFilesSpoiler(meta *release.Meta, from int) string {
	if len(meta.Discs) > 0 || from >= len(meta.Files) {
		return ""
	}
	var b strings.Builder
	b.WriteString("[spoiler=Other files]")
	for _, file := range meta.Files[from:] {
		b.WriteByte('\n')
		b.WriteString(filepath.Base(file.Path))
	}
	b.WriteString("\n[/spoiler]")
	return b.String()
}
