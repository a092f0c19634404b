package sri

import "crypto/tls"

// Signer firma el XML canónico de un comprobante y devuelve el XML con la firma XAdES-BES
// embebida como último hijo del elemento raíz.
type Signer interface {
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}
