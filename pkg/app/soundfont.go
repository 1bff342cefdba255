package app

import (
	"github.com/zurustar/scenevm/pkg/fileutil"
)

// DefaultSoundFontName is the SoundFont looked for in the game directory when
// the configuration names none.
const DefaultSoundFontName = "GeneralUser-GS.sf2"

// findSoundFont returns the SoundFont path to load through fsys, or "" when
// MIDI playback is unavailable.
//
// 検索順序:
//  1. 設定ファイルの audio.soundfont
//  2. ゲームディレクトリの GeneralUser-GS.sf2
func findSoundFont(fsys fileutil.FileSystem, configured string) string {
	if configured != "" {
		return configured
	}
	f, err := fsys.Open(DefaultSoundFontName)
	if err != nil {
		return ""
	}
	f.Close()
	return DefaultSoundFontName
}
