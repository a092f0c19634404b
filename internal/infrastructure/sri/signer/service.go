// Servicio de firma digital XAdES-BES para comprobantes electrónicos SRI.
// Agrega <ds:Signature> como último hijo del elemento raíz (firma enveloped).

package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/sri-facturacion/pkg/sri"
)

// nsDecl declaraciones en alcance de los fragmentos firmados: las mismas que lleva ds:Signature.
const nsDecl = ` xmlns:ds="` + NamespaceDS + `" xmlns:etsi="` + NamespaceETSI + `"`

// DigitalSignatureService implementa sri.Signer con XAdES-BES (RSA-SHA1).
type DigitalSignatureService struct {
	now   func() time.Time
	newID func() string
}

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService() *DigitalSignatureService {
	return &DigitalSignatureService{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// signatureIDs identificadores cruzados entre SignedInfo, KeyInfo y SignedProperties.
type signatureIDs struct {
	signature, signedInfo, signedProps, certificate, reference, signatureValue, object string
}

func newSignatureIDs(n string) signatureIDs {
	return signatureIDs{
		signature:      "Signature-" + n,
		signedInfo:     "Signature-" + n + "-SignedInfo",
		signedProps:    "Signature-" + n + "-SignedProperties",
		certificate:    "Certificate-" + n,
		reference:      "Reference-ID-" + n,
		signatureValue: "SignatureValue-" + n,
		object:         "Signature-" + n + "-Object",
	}
}

// Sign implementa sri.Signer.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(xmlBytes) == 0 {
		return nil, fmt.Errorf("firma: XML vacío")
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("firma: el certificado debe incluir llave privada RSA")
	}
	x509Cert := cert.Leaf
	if x509Cert == nil {
		if len(cert.Certificate) == 0 {
			return nil, fmt.Errorf("firma: certificado vacío")
		}
		var err error
		if x509Cert, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return nil, fmt.Errorf("firma: parsear certificado: %w", err)
		}
	}

	ids := newSignatureIDs(s.newID())

	// 1) Digest del comprobante (C14N, sin firma: transform enveloped)
	canonicalDoc, err := canonicalizeXML(xmlBytes)
	if err != nil {
		return nil, fmt.Errorf("firma: canonicalizar comprobante: %w", err)
	}
	docDigest := digestB64(canonicalDoc)

	// 2) KeyInfo y SignedProperties: se firman por referencia
	certB64 := base64.StdEncoding.EncodeToString(x509Cert.Raw)
	keyInfoDigest, err := digestFragment(s.buildKeyInfo(ids, certB64, &priv.PublicKey, nsDecl))
	if err != nil {
		return nil, err
	}
	certDigest, issuerName, serial := CertDigestAndIssuerSerial(x509Cert)
	signingTime := s.now().Format(signingTimeLayout)
	propsDigest, err := digestFragment(s.buildSignedProperties(ids, signingTime, certDigest, issuerName, serial, nsDecl))
	if err != nil {
		return nil, err
	}

	// 3) SignedInfo canónico firmado con RSA-SHA1
	canonicalSignedInfo, err := canonicalizeXML([]byte(s.buildSignedInfo(ids, docDigest, keyInfoDigest, propsDigest, nsDecl)))
	if err != nil {
		return nil, fmt.Errorf("firma: canonicalizar SignedInfo: %w", err)
	}
	hash := sha1.Sum(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(rand.Reader, priv, crypto.SHA1, hash[:])
	if err != nil {
		return nil, fmt.Errorf("firma: firmar SignedInfo: %w", err)
	}

	// 4) Ensamblar e inyectar
	var sb strings.Builder
	sb.WriteString(`<ds:Signature` + nsDecl + ` Id="` + ids.signature + `">`)
	sb.WriteString(s.buildSignedInfo(ids, docDigest, keyInfoDigest, propsDigest, ""))
	sb.WriteString(`<ds:SignatureValue Id="` + ids.signatureValue + `">` + base64.StdEncoding.EncodeToString(signatureValue) + `</ds:SignatureValue>`)
	sb.WriteString(s.buildKeyInfo(ids, certB64, &priv.PublicKey, ""))
	sb.WriteString(`<ds:Object Id="` + ids.object + `"><etsi:QualifyingProperties Target="#` + ids.signature + `">`)
	sb.WriteString(s.buildSignedProperties(ids, signingTime, certDigest, issuerName, serial, ""))
	sb.WriteString(`</etsi:QualifyingProperties></ds:Object>`)
	sb.WriteString(`</ds:Signature>`)

	return s.injectSignature(xmlBytes, sb.String())
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func digestB64(data []byte) string {
	h := sha1.Sum(data)
	return base64.StdEncoding.EncodeToString(h[:])
}

func digestFragment(fragment string) (string, error) {
	canonical, err := canonicalizeXML([]byte(fragment))
	if err != nil {
		return "", fmt.Errorf("firma: canonicalizar fragmento: %w", err)
	}
	return digestB64(canonical), nil
}

func (s *DigitalSignatureService) buildSignedInfo(ids signatureIDs, docDigest, keyInfoDigest, propsDigest, ns string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo` + ns + ` Id="` + ids.signedInfo + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"></ds:CanonicalizationMethod>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + AlgRSASHA1 + `"></ds:SignatureMethod>`)
	sb.WriteString(`<ds:Reference Id="SignedPropertiesID-` + ids.signature + `" Type="` + TypeSignedProps + `" URI="#` + ids.signedProps + `">`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA1 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + propsDigest + `</ds:DigestValue></ds:Reference>`)
	sb.WriteString(`<ds:Reference URI="#` + ids.certificate + `">`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA1 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + keyInfoDigest + `</ds:DigestValue></ds:Reference>`)
	sb.WriteString(`<ds:Reference Id="` + ids.reference + `" URI="#` + DocumentElementID + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"></ds:Transform></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA1 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + docDigest + `</ds:DigestValue></ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func (s *DigitalSignatureService) buildKeyInfo(ids signatureIDs, certB64 string, pub *rsa.PublicKey, ns string) string {
	modulus := base64.StdEncoding.EncodeToString(pub.N.Bytes())
	exponent := base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes())
	var sb strings.Builder
	sb.WriteString(`<ds:KeyInfo` + ns + ` Id="` + ids.certificate + `">`)
	sb.WriteString(`<ds:X509Data><ds:X509Certificate>` + certB64 + `</ds:X509Certificate></ds:X509Data>`)
	sb.WriteString(`<ds:KeyValue><ds:RSAKeyValue><ds:Modulus>` + modulus + `</ds:Modulus>`)
	sb.WriteString(`<ds:Exponent>` + exponent + `</ds:Exponent></ds:RSAKeyValue></ds:KeyValue>`)
	sb.WriteString(`</ds:KeyInfo>`)
	return sb.String()
}

func (s *DigitalSignatureService) buildSignedProperties(ids signatureIDs, signingTime, certDigest, issuerName, serial, ns string) string {
	var sb strings.Builder
	sb.WriteString(`<etsi:SignedProperties` + ns + ` Id="` + ids.signedProps + `">`)
	sb.WriteString(`<etsi:SignedSignatureProperties>`)
	sb.WriteString(`<etsi:SigningTime>` + signingTime + `</etsi:SigningTime>`)
	sb.WriteString(`<etsi:SigningCertificate><etsi:Cert><etsi:CertDigest>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + AlgSHA1 + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + certDigest + `</ds:DigestValue></etsi:CertDigest>`)
	sb.WriteString(`<etsi:IssuerSerial><ds:X509IssuerName>` + escapeXML(issuerName) + `</ds:X509IssuerName>`)
	sb.WriteString(`<ds:X509SerialNumber>` + serial + `</ds:X509SerialNumber></etsi:IssuerSerial>`)
	sb.WriteString(`</etsi:Cert></etsi:SigningCertificate></etsi:SignedSignatureProperties>`)
	sb.WriteString(`<etsi:SignedDataObjectProperties><etsi:DataObjectFormat ObjectReference="#` + ids.reference + `">`)
	sb.WriteString(`<etsi:Description>` + dataObjectDescription + `</etsi:Description>`)
	sb.WriteString(`<etsi:MimeType>` + dataObjectMimeType + `</etsi:MimeType>`)
	sb.WriteString(`</etsi:DataObjectFormat></etsi:SignedDataObjectProperties>`)
	sb.WriteString(`</etsi:SignedProperties>`)
	return sb.String()
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

// injectSignature agrega la firma como último hijo del elemento raíz id="comprobante".
func (s *DigitalSignatureService) injectSignature(xmlBytes []byte, signatureXML string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("firma: parsear XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("firma: documento sin raíz")
	}
	if root.SelectAttrValue("id", "") != DocumentElementID {
		return nil, fmt.Errorf("firma: el elemento raíz %s no tiene id=%q", root.Tag, DocumentElementID)
	}
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("firma: parsear Signature: %w", err)
	}
	root.AddChild(sigDoc.Root())

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("firma: serializar XML firmado: %w", err)
	}
	return out, nil
}

var _ sri.Signer = (*DigitalSignatureService)(nil)
