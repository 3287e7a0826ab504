package term

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
	"golang.org/x/xerrors"
)

// ErrEmptyToken возвращается, если пользователь ничего не ввел.
var ErrEmptyToken = xerrors.New("empty token")

// Terminal обеспечивает интерактивный ввод токена через терминал.
type Terminal struct {
	in      *bufio.Reader
	out     io.Writer
	stdinfd int
	isTTY   func(fd int) bool
	readPwd func(fd int) ([]byte, error)
}

// NewTerminal создает новый экземпляр Terminal для стандартных потоков.
func NewTerminal() *Terminal {
	return newTerminal(os.Stdin, os.Stderr, int(os.Stdin.Fd()))
}

func newTerminal(in io.Reader, out io.Writer, fd int) *Terminal {
	return &Terminal{
		in:      bufio.NewReader(in),
		out:     out,
		stdinfd: fd,
		isTTY:   term.IsTerminal,
		readPwd: term.ReadPassword,
	}
}

// IsInteractive сообщает, подключен ли ввод к терминалу.
func (t *Terminal) IsInteractive() bool {
	return t.isTTY(t.stdinfd)
}

// Token запрашивает токен. В терминале ввод не отображается,
// иначе читается первая строка ввода.
func (t *Terminal) Token(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	var raw string
	if t.IsInteractive() {
		fmt.Fprint(t.out, "Enter token: ")
		b, err := t.readPwd(t.stdinfd)
		fmt.Fprintln(t.out) // Новая строка после ввода
		if err != nil {
			return "", xerrors.Errorf("failed to read token: %w", err)
		}
		raw = string(b)
	} else {
		line, err := t.in.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", xerrors.Errorf("failed to read token: %w", err)
		}
		raw = line
	}

	token := strings.TrimSpace(raw)
	if token == "" {
		return "", ErrEmptyToken
	}
	return token, nil
}
