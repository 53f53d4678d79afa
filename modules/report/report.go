// Package report forwards observed change notifications to a FIM server.
package report

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Leantar/fimproto/proto"
	"github.com/Leantar/fswatchbench/models"
	"github.com/Leantar/fswatchbench/modules/notifier"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
)

// Event kinds understood by the FIM server.
const (
	KindCreate = "CREATE"
	KindDelete = "DELETE"
	KindChange = "CHANGE"
)

type Config struct {
	Host        string `yaml:"host" envconfig:"host"`
	Port        int64  `yaml:"port" envconfig:"port"`
	CertFile    string `yaml:"cert_file" envconfig:"cert_file"`
	CertKeyFile string `yaml:"cert_key_file" envconfig:"cert_key_file"`
	CaFile      string `yaml:"ca_file" envconfig:"ca_file"`
}

// Enabled reports whether a server is configured.
func (c Config) Enabled() bool {
	return c.Host != ""
}

type Reporter struct {
	conn   *grpc.ClientConn
	client proto.FimClient
	conf   Config
}

func New(conf Config) *Reporter {
	return &Reporter{
		conf: conf,
	}
}

func (r *Reporter) Connect() error {
	creds, err := createGrpcCredentials(r.conf.CertFile, r.conf.CertKeyFile, r.conf.CaFile)
	if err != nil {
		return err
	}

	address := net.JoinHostPort(r.conf.Host, strconv.FormatInt(r.conf.Port, 10))

	r.conn, err = grpc.Dial(address, grpc.WithTransportCredentials(creds))
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", address, err)
	}
	log.Info().Msgf("connected to %s", address)

	r.client = proto.NewFimClient(r.conn)

	return nil
}

// Report sends one FIM event per path of e.
func (r *Reporter) Report(ctx context.Context, e notifier.Event) error {
	for _, path := range e.Paths {
		obj, err := models.Snapshot(path)
		if err != nil {
			log.Warn().Caller().Err(err).Msg("failed to snapshot event path")
			continue
		}

		_, err = r.client.ReportFsEvent(ctx, ToProto(e.Kind, obj, e.Time))
		if err != nil {
			return fmt.Errorf("failed to report event for %s: %w", path, err)
		}
	}

	return nil
}

func (r *Reporter) Close() error {
	if r.conn == nil {
		return nil
	}

	return r.conn.Close()
}

// ToProto converts a snapshot taken for a notification into the FIM wire
// type. Missing paths are always reported as deletions.
func ToProto(kind notifier.Kind, obj models.FsObject, issuedAt time.Time) *proto.Event {
	return &proto.Event{
		Kind:     fimKind(kind, obj),
		IssuedAt: issuedAt.Unix(),
		FsObject: &proto.FsObject{
			Path:     obj.Path,
			Hash:     obj.Hash,
			Created:  obj.Created,
			Modified: obj.Modified,
			Uid:      obj.Uid,
			Gid:      obj.Gid,
			Mode:     obj.Mode,
		},
	}
}

func fimKind(kind notifier.Kind, obj models.FsObject) string {
	if obj.Missing || kind == notifier.KindRemove {
		return KindDelete
	}

	if kind == notifier.KindCreate {
		return KindCreate
	}

	return KindChange
}

func createGrpcCredentials(certPath, keyPath, caPath string) (credentials.TransportCredentials, error) {
	caFile, err := filepath.Abs(caPath)
	if err != nil {
		return nil, err
	}

	caBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read ca file: %w", err)
	}

	certFile, err := filepath.Abs(certPath)
	if err != nil {
		return nil, err
	}

	keyFile, err := filepath.Abs(keyPath)
	if err != nil {
		return nil, err
	}

	pool := x509.NewCertPool()
	ok := pool.AppendCertsFromPEM(caBytes)
	if !ok {
		return nil, fmt.Errorf("failed to parse %s", caFile)
	}

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load key pair: %w", err)
	}

	return credentials.NewTLS(&tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
	}), nil
}
