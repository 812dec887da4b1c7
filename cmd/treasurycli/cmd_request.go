package main

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"io/ioutil"
	"net/http"
	"strconv"
	"time"

	"github.com/iov-one/treasury"
	"github.com/iov-one/treasury/crypto"
)

func cmdRequest(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), `
Send a request to the treasuryd service and print out the response.

Request body is read from the standard input for POST requests. The request
is signed with your private key, unless -anonymous is used. Unless provided,
the sequence of the signer is fetched from the service first.
`)
		fl.PrintDefaults()
	}
	var (
		keyPathFl   = fl.String("key", defaultKeyPath(), keyPathHelp)
		urlFl       = fl.String("url", env("TREASURYCLI_URL", "http://localhost:8000"), "treasuryd address. You can use TREASURYCLI_URL environment variable to set it.")
		methodFl    = fl.String("method", "GET", "HTTP method.")
		pathFl      = fl.String("path", "/vaults", "Resource path.")
		anonymousFl = fl.Bool("anonymous", false, "Do not sign the request.")
		seqFl       = fl.Int64("seq", -1, "Sequence to sign the request with. Fetched from the service if not set.")
	)
	fl.Parse(args)

	var body []byte
	if *methodFl == "POST" {
		var err error
		if body, err = ioutil.ReadAll(input); err != nil {
			return fmt.Errorf("cannot read request body: %s", err)
		}
	}

	req, err := http.NewRequest(*methodFl, *urlFl+*pathFl, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("cannot create request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if !*anonymousFl {
		key, err := readPrivateKey(*keyPathFl)
		if err != nil {
			return err
		}
		seq := *seqFl
		if seq < 0 {
			if seq, err = fetchSequence(*urlFl, crypto.Address(key)); err != nil {
				return err
			}
		}
		if err := signRequest(req, key, time.Now(), seq, body); err != nil {
			return err
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %s", err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(output, resp.Body); err != nil {
		return fmt.Errorf("cannot read response: %s", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("response status %d", resp.StatusCode)
	}
	return nil
}

// fetchSequence returns the sequence the signer must use with its next
// request.
func fetchSequence(baseURL string, signer treasury.Address) (int64, error) {
	resp, err := http.Get(baseURL + "/sigs/" + signer.String())
	if err != nil {
		return 0, fmt.Errorf("cannot fetch sequence: %s", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("cannot fetch sequence: response status %d", resp.StatusCode)
	}
	var payload struct {
		Sequence int64 `json:"sequence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return 0, fmt.Errorf("cannot decode sequence: %s", err)
	}
	return payload.Sequence, nil
}

// signRequest sets authentication headers as expected by treasuryd.
func signRequest(req *http.Request, key crypto.Signer, now time.Time, seq int64, body []byte) error {
	ts := now.Unix()
	sig, err := key.Sign(crypto.RequestSignBytes(req.Method, req.URL.Path, ts, seq, body))
	if err != nil {
		return fmt.Errorf("cannot sign request: %s", err)
	}
	req.Header.Set("X-Treasury-Pubkey", key.PublicKey().String())
	req.Header.Set("X-Treasury-Signature", hex.EncodeToString(sig))
	req.Header.Set("X-Treasury-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Treasury-Sequence", strconv.FormatInt(seq, 10))
	return nil
}
