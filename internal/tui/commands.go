package tui

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pdfchat/internal/chat"
	"pdfchat/internal/domain"
)

type commandKind int

const (
	cmdMessage commandKind = iota
	cmdNew
	cmdSwitch
	cmdNext
	cmdPrev
	cmdRename
	cmdDelete
	cmdUpload
	cmdRemove
	cmdDocs
	cmdHelp
	cmdQuit
)

type command struct {
	kind  commandKind
	arg   string
	args  []string
	index int
}

const helpText = `/new              start a new conversation
/switch N         switch to conversation N
/next, /prev      cycle conversations
/rename TITLE     rename the current conversation
/delete           delete the current conversation
/upload PATH...   add PDF files (globs allowed)
/remove NAME      remove a document
/docs             list documents
/quit             exit`

// parseCommand turns an input line into a command. Plain text is a message.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{kind: cmdMessage, arg: line}, nil
	}
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	switch strings.ToLower(name) {
	case "/new":
		return command{kind: cmdNew}, nil
	case "/switch":
		n, err := strconv.Atoi(rest)
		if err != nil {
			return command{}, fmt.Errorf("usage: /switch N")
		}
		return command{kind: cmdSwitch, index: n}, nil
	case "/next":
		return command{kind: cmdNext}, nil
	case "/prev":
		return command{kind: cmdPrev}, nil
	case "/rename":
		if rest == "" {
			return command{}, fmt.Errorf("usage: /rename TITLE")
		}
		return command{kind: cmdRename, arg: rest}, nil
	case "/delete":
		return command{kind: cmdDelete}, nil
	case "/upload":
		paths := strings.Fields(rest)
		if len(paths) == 0 {
			return command{}, fmt.Errorf("usage: /upload PATH...")
		}
		return command{kind: cmdUpload, args: paths}, nil
	case "/remove":
		if rest == "" {
			return command{}, fmt.Errorf("usage: /remove NAME")
		}
		return command{kind: cmdRemove, arg: rest}, nil
	case "/docs":
		return command{kind: cmdDocs}, nil
	case "/help":
		return command{kind: cmdHelp}, nil
	case "/quit", "/exit":
		return command{kind: cmdQuit}, nil
	}
	return command{}, fmt.Errorf("unknown command %s, try /help", name)
}

// readFiles expands globs and loads each file. Unreadable paths are reported
// and skipped.
func readFiles(patterns []string) ([]chat.File, []error) {
	var files []chat.File
	var errs []error
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil || len(matches) == 0 {
			matches = []string{p}
		}
		for _, path := range matches {
			data, err := os.ReadFile(path)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", path, err))
				continue
			}
			files = append(files, chat.File{Name: filepath.Base(path), Data: data})
		}
	}
	return files, errs
}

// describe renders an error for the status line.
func describe(err error) string {
	var de *domain.Error
	if !errors.As(err, &de) {
		return "Error: " + err.Error()
	}
	text := de.Message
	if de.Subject != "" {
		text = de.Subject + ": " + text
	}
	if de.Cause != nil {
		text += " (" + de.Cause.Error() + ")"
	}
	switch {
	case domain.IsSoft(err):
		return "Warning: " + text
	case de.Kind == domain.KindPersistence:
		return "Not saved, a restart may lose this change: " + text
	}
	return "Error: " + text
}

func describeAll(errs []error) string {
	parts := make([]string, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			parts = append(parts, describe(err))
		}
	}
	return strings.Join(parts, "; ")
}
