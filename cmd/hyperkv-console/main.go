/*
Copyright (C) 2026  HyperKV Contributors

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU General Public License as published by
	the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU General Public License for more details.

	You should have received a copy of the GNU General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Command hyperkv-console is an interactive RESP client for poking at
// a running hyperkv-server: PING, GET/SET, and the admin surface
// (INFO, CONFIG, CLIENT).
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/hyperkv-project/hyperkv/resp"
)

const prompt = "\033[32mhyperkv>\033[0m "

func main() {
	addr := flag.String("addr", "127.0.0.1:6379", "server address")
	authPassword := flag.String("auth", "", "AUTH password, if the server requires one")
	flag.Parse()

	nc, err := net.Dial("tcp", *addr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hyperkv-console:", err)
		os.Exit(1)
	}
	defer nc.Close()

	c := &client{conn: nc, dec: resp.NewDecoder(), r: bufio.NewReader(nc)}

	if *authPassword != "" {
		reply, err := c.exchange([]string{"AUTH", *authPassword})
		if err != nil {
			fmt.Fprintln(os.Stderr, "hyperkv-console: auth failed:", err)
			os.Exit(1)
		}
		fmt.Println(formatFrame(reply))
	}

	l, err := readline.NewEx(&readline.Config{
		Prompt:            prompt,
		HistoryFile:       ".hyperkv-console-history.tmp",
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		panic(err)
	}
	defer l.Close()
	l.CaptureExitSignal()

	for {
		line, err := l.Readline()
		if err == readline.ErrInterrupt {
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		argv := splitArgs(line)
		if len(argv) == 0 {
			continue
		}

		reply, err := c.exchange(argv)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			if err == io.EOF {
				break
			}
			continue
		}
		fmt.Println(formatFrame(reply))
	}
}

type client struct {
	conn net.Conn
	dec  *resp.Decoder
	r    *bufio.Reader
}

func (c *client) exchange(argv []string) (resp.Frame, error) {
	items := make([]resp.Frame, len(argv))
	for i, a := range argv {
		items[i] = resp.BulkStringFrame(a)
	}
	buf := resp.Encode(nil, resp.ArrayFrame(items...))

	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.conn.Write(buf); err != nil {
		return resp.Frame{}, err
	}

	c.conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		f, ok, err := c.dec.Next()
		if err != nil {
			return resp.Frame{}, err
		}
		if ok {
			return f, nil
		}
		chunk := make([]byte, 4096)
		n, err := c.r.Read(chunk)
		if n > 0 {
			c.dec.Feed(chunk[:n])
		}
		if err != nil {
			return resp.Frame{}, err
		}
	}
}

// splitArgs does simple whitespace tokenization with single- and
// double-quote support, enough for admin commands and small values.
func splitArgs(line string) []string {
	var out []string
	var cur strings.Builder
	var quote byte
	inToken := false

	flush := func() {
		if inToken {
			out = append(out, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	for i := 0; i < len(line); i++ {
		ch := line[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			} else {
				cur.WriteByte(ch)
			}
		case ch == '\'' || ch == '"':
			quote = ch
			inToken = true
		case ch == ' ' || ch == '\t':
			flush()
		default:
			inToken = true
			cur.WriteByte(ch)
		}
	}
	flush()
	return out
}

func formatFrame(f resp.Frame) string {
	switch f.Kind {
	case resp.SimpleString:
		return f.Str
	case resp.Error:
		return "(error) " + f.Str
	case resp.Integer:
		return fmt.Sprintf("(integer) %d", f.Int)
	case resp.BulkString:
		if !f.BulkSet {
			return "(nil)"
		}
		return string(f.Bulk)
	case resp.Array:
		if f.ArrayNull {
			return "(nil)"
		}
		if len(f.Items) == 0 {
			return "(empty array)"
		}
		var b strings.Builder
		for i, item := range f.Items {
			fmt.Fprintf(&b, "%d) %s\n", i+1, formatFrame(item))
		}
		return strings.TrimRight(b.String(), "\n")
	default:
		return ""
	}
}
