// Carga del certificado de firma desde .p12 (PKCS#12) o par PEM.

package signer

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pkcs12"
)

// LoadFromP12 carga certificado y llave privada desde un archivo .p12/.pfx.
// Los archivos emitidos por las entidades de certificación ecuatorianas suelen traer
// la cadena completa; en ese caso se elige el certificado que corresponde a la llave.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
	}
	return DecodeP12(data, password)
}

// DecodeP12 decodifica el contenido de un .p12 ya leído.
func DecodeP12(data []byte, password string) (tls.Certificate, error) {
	if priv, cert, err := pkcs12.Decode(data, password); err == nil {
		return tls.Certificate{Certificate: [][]byte{cert.Raw}, PrivateKey: priv, Leaf: cert}, nil
	}

	blocks, err := pkcs12.ToPEM(data, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decodificar p12: %w", err)
	}
	var (
		key   crypto.PrivateKey
		certs []*x509.Certificate
	)
	for _, b := range blocks {
		switch b.Type {
		case "PRIVATE KEY":
			if key, err = parsePrivateKey(b); err != nil {
				return tls.Certificate{}, err
			}
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return tls.Certificate{}, fmt.Errorf("parsear certificado p12: %w", err)
			}
			certs = append(certs, c)
		}
	}
	if key == nil || len(certs) == 0 {
		return tls.Certificate{}, fmt.Errorf("p12 sin llave privada o certificado")
	}

	leaf := certs[0]
	if rsaKey, ok := key.(*rsa.PrivateKey); ok {
		for _, c := range certs {
			if pub, ok := c.PublicKey.(*rsa.PublicKey); ok && pub.N.Cmp(rsaKey.N) == 0 {
				leaf = c
				break
			}
		}
	}
	out := tls.Certificate{PrivateKey: key, Leaf: leaf, Certificate: [][]byte{leaf.Raw}}
	for _, c := range certs {
		if c != leaf {
			out.Certificate = append(out.Certificate, c.Raw)
		}
	}
	return out, nil
}

func parsePrivateKey(b *pem.Block) (crypto.PrivateKey, error) {
	if k, err := x509.ParsePKCS1PrivateKey(b.Bytes); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(b.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parsear llave privada p12: %w", err)
	}
	return k, nil
}

// LoadFromPEM carga certificado y llave desde archivos PEM (por separado o combinados).
func LoadFromPEM(certPath, keyPath string) (tls.Certificate, error) {
	if keyPath == "" {
		keyPath = certPath
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar PEM: %w", err)
	}
	return cert, nil
}

// Load elige el formato por extensión: .pem/.crt como PEM, cualquier otro como PKCS#12.
// Un path vacío devuelve un certificado vacío (firma deshabilitada).
func Load(path, password string) (tls.Certificate, error) {
	if path == "" {
		return tls.Certificate{}, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pem", ".crt":
		return LoadFromPEM(path, "")
	}
	return LoadFromP12(path, password)
}

// CertDigestAndIssuerSerial devuelve el digest SHA-1 del certificado (Base64), el emisor
// y el número de serie en decimal, como los exige SigningCertificate.
func CertDigestAndIssuerSerial(cert *x509.Certificate) (digestB64 string, issuerName string, serial string) {
	h := sha1.Sum(cert.Raw)
	digestB64 = base64.StdEncoding.EncodeToString(h[:])
	issuerName = cert.Issuer.String()
	serial = cert.SerialNumber.String()
	return digestB64, issuerName, serial
}
