package blob

import (
	"fmt"
	"strings"
	"time"
)

// DerivedContentType is the content type of synthesized insight audio
const DerivedContentType = "audio/mpeg"

var extensions = map[string]string{
	"audio/webm": "webm",
	"audio/wav":  "wav",
	"audio/mpeg": "mp3",
	"audio/mp3":  "mp3",
	"audio/ogg":  "ogg",
	"audio/mp4":  "m4a",
}

var contentTypes = map[string]string{
	".webm": "audio/webm",
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
}

// ExtensionFor maps a content type to a file extension, ignoring parameters
// such as codecs.
func ExtensionFor(contentType string) string {
	base := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	if ext, ok := extensions[strings.ToLower(base)]; ok {
		return ext
	}
	return "bin"
}

// ContentTypeFor maps an extension (with dot) back to a content type
func ContentTypeFor(ext string) string {
	return contentTypes[strings.ToLower(ext)]
}

// RecordingKey names an original recording: <owner>/<unixMillis>.<ext>
func RecordingKey(ownerID string, at time.Time, contentType string) string {
	return fmt.Sprintf("%s/%d.%s", ownerID, at.UnixMilli(), ExtensionFor(contentType))
}

// DerivedKey names synthesized insight audio:
// <owner>/insight_<unixMillis>_<entryID>.mp3. The entry id keeps generations
// for different entries in the same millisecond apart.
func DerivedKey(ownerID, entryID string, at time.Time) string {
	return fmt.Sprintf("%s/insight_%d_%s.mp3", ownerID, at.UnixMilli(), entryID)
}
