// Package screens captures screenshot frames from media files with ffmpeg.
package screens
