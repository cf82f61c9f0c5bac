package bakong

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/shopspring/decimal"
)

// Outbound ISO-20022 payloads and the SOAP envelopes that carry them. The
// gateway expects the inner document wrapped in CDATA inside the operation
// element.

var ackTemplate = template.Must(template.New("pain002").Parse(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Document xsi:schemaLocation="jaxb/iso20022/pain.002.001.06.xsd" xmlns="urn:iso:std:iso:20022:tech:xsd:pain.002.001.06" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
   <CstmrPmtStsRpt>
      <GrpHdr>
         <MsgId>{{.MsgID}}</MsgId>
         <CreDtTm>{{.CreatedAt}}</CreDtTm>
         <InitgPty>
            <Nm>{{.DebtorBIC}}</Nm>
         </InitgPty>
         <DbtrAgt>
            <FinInstnId>
               <BICFI>{{.DebtorBIC}}</BICFI>
            </FinInstnId>
         </DbtrAgt>
         <CdtrAgt>
            <FinInstnId>
               <BICFI>{{.CreditorBIC}}</BICFI>
            </FinInstnId>
         </CdtrAgt>
      </GrpHdr>
      <OrgnlGrpInfAndSts>
         <OrgnlMsgId>{{.OriginalMsgID}}</OrgnlMsgId>
         <OrgnlMsgNmId>pain.001.001.05</OrgnlMsgNmId>
         <OrgnlCreDtTm>{{.CreatedAt}}</OrgnlCreDtTm>
      </OrgnlGrpInfAndSts>
      <OrgnlPmtInfAndSts>
         <OrgnlPmtInfId>{{.OriginalPmtInfID}}</OrgnlPmtInfId>
         <TxInfAndSts>
            <TxSts>ACSC</TxSts>
            <OrgnlTxRef>
               <Amt>
                  <InstdAmt Ccy="{{.Currency}}">{{.Amount}}</InstdAmt>
               </Amt>
               <Dbtr>
                  <Nm>{{.DebtorBIC}}</Nm>
               </Dbtr>
               <Cdtr>
                  <Nm>{{.CreditorBIC}}</Nm>
               </Cdtr>
            </OrgnlTxRef>
         </TxInfAndSts>
      </OrgnlPmtInfAndSts>
   </CstmrPmtStsRpt>
</Document>`))

var transferTemplate = template.Must(template.New("pain001").Parse(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Document xsi:schemaLocation="xsd/pain.001.001.05.xsd" xmlns="urn:iso:std:iso:20022:tech:xsd:pain.001.001.05" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
    <CstmrCdtTrfInitn>
        <GrpHdr>
            <MsgId>{{.MsgID}}</MsgId>
            <CreDtTm>{{.CreatedAt}}</CreDtTm>
            <NbOfTxs>1</NbOfTxs>
            <CtrlSum>{{.Amount}}</CtrlSum>
            <InitgPty>
                <Nm>{{.SenderName}}</Nm>
            </InitgPty>
        </GrpHdr>
        <PmtInf>
            <PmtInfId>{{.PmtInfID}}</PmtInfId>
            <PmtMtd>TRF</PmtMtd>
            <BtchBookg>false</BtchBookg>
            <ReqdExctnDt>{{.ExecutionDate}}</ReqdExctnDt>
            <Dbtr>
                <Nm>{{.SenderName}}</Nm>
            </Dbtr>
            <DbtrAcct>
                <Id>
                    <Othr>
                        <Id>{{.SenderAccount}}</Id>
                    </Othr>
                </Id>
                <Ccy>{{.Currency}}</Ccy>
            </DbtrAcct>
            <DbtrAgt>
                <FinInstnId>
                    <BICFI>{{.SenderBIC}}</BICFI>
                </FinInstnId>
            </DbtrAgt>
            <CdtTrfTxInf>
                <PmtId>
                    <InstrId>{{.InstrID}}</InstrId>
                    <EndToEndId>{{.EndToEndID}}</EndToEndId>
                </PmtId>
                <Amt>
                    <InstdAmt Ccy="{{.Currency}}">{{.Amount}}</InstdAmt>
                </Amt>
                <ChrgBr>CRED</ChrgBr>
                <CdtrAgt>
                    <FinInstnId>
                        <BICFI>{{.ReceiverBIC}}</BICFI>
                    </FinInstnId>
                </CdtrAgt>
                <Cdtr>
                    <Nm>Refund Recipient</Nm>
                </Cdtr>
                <CdtrAcct>
                    <Id>
                        <Othr>
                            <Id>{{.ReceiverAccount}}</Id>
                        </Othr>
                    </Id>
                </CdtrAcct>
                <Purp>
                    <Cd>GDDS</Cd>
                </Purp>
                <RmtInf>
                    <Ustrd>Refund-OBS-{{.Timestamp}}</Ustrd>
                </RmtInf>
            </CdtTrfTxInf>
        </PmtInf>
    </CstmrCdtTrfInitn>
</Document>`))

var reversalTemplate = template.Must(template.New("pain007").Parse(`<Document xmlns="urn:iso:std:iso:20022:tech:xsd:pain.007.001.05" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">
    <CstmrPmtRvsl>
        <GrpHdr>
            <MsgId>{{.MsgID}}</MsgId>
            <CreDtTm>{{.CreatedAt}}</CreDtTm>
            <NbOfTxs>1</NbOfTxs>
            <DbtrAgt>
                <FinInstnId>
                    <BICFI>{{.DebtorBIC}}</BICFI>
                </FinInstnId>
            </DbtrAgt>
            <CdtrAgt>
                <FinInstnId>
                    <BICFI>{{.CreditorBIC}}</BICFI>
                </FinInstnId>
            </CdtrAgt>
        </GrpHdr>
        <OrgnlGrpInf>
            <OrgnlMsgId>{{.OriginalMsgID}}</OrgnlMsgId>
            <OrgnlMsgNmId>pain.001.001.05</OrgnlMsgNmId>
            <OrgnlCreDtTm>{{.OriginalCreatedAt}}</OrgnlCreDtTm>
        </OrgnlGrpInf>
        <OrgnlPmtInfAndRvsl>
            <OrgnlPmtInfId>{{.OriginalPmtInfID}}</OrgnlPmtInfId>
            <TxInf>
                <RvslId>{{.ReversalID}}</RvslId>
                <OrgnlInstdAmt Ccy="{{.Currency}}">{{.Amount}}</OrgnlInstdAmt>
                <RvsdInstdAmt Ccy="{{.Currency}}">{{.Amount}}</RvsdInstdAmt>
                <RvslRsnInf>
                    <Orgtr>
                        <Nm>{{.DebtorBIC}}</Nm>
                    </Orgtr>
                    <Rsn>
                        <Cd>GDDS</Cd>
                    </Rsn>
                </RvslRsnInf>
                <OrgnlTxRef>
                    <Dbtr>
                        <Nm>{{.DebtorBIC}}</Nm>
                    </Dbtr>
                    <DbtrAcct>
                        <Id>
                            <Othr>
                                <Id>{{.DebtorAccount}}</Id>
                            </Othr>
                        </Id>
                    </DbtrAcct>
                    <Cdtr>
                        <Nm>{{.CreditorBIC}}</Nm>
                    </Cdtr>
                </OrgnlTxRef>
            </TxInf>
        </OrgnlPmtInfAndRvsl>
    </CstmrPmtRvsl>
</Document>`))

// soapEnvelope wraps a web-service operation body in the SOAP envelope the
// gateway expects.
func soapEnvelope(operation, inner string) string {
	return fmt.Sprintf(`<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/" xmlns:web="http://webservice.nbc.org.kh/">
   <soapenv:Header/>
   <soapenv:Body>
      <web:%s>
%s
      </web:%s>
   </soapenv:Body>
</soapenv:Envelope>`, operation, inner, operation)
}

func credentialFields(username, password string) string {
	return fmt.Sprintf("         <web:cm_user_name>%s</web:cm_user_name>\n         <web:cm_password>%s</web:cm_password>",
		username, password)
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf strings.Builder
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render %s payload: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// transferPayload builds the pain.001 credit transfer document for
// makeFullFundTransfer along with the ext_ref identifying it.
func (c *Client) transferPayload(amount decimal.Decimal, currency, destBIC, destAccount string, now time.Time) (isoMessage, extRef string, err error) {
	timestamp := now.UnixMilli()
	refID := fmt.Sprintf("%d", timestamp)
	if len(refID) > 10 {
		refID = refID[len(refID)-10:]
	}

	pmtInfID := fmt.Sprintf("%s/%s/%s", c.cfg.SenderBIC, destBIC, refID)
	payload, err := render(transferTemplate, map[string]interface{}{
		"MsgID":           fmt.Sprintf("CRT%s%d", destBIC, timestamp),
		"CreatedAt":       now.Format("2006-01-02T15:04:05.000+07:00"),
		"ExecutionDate":   now.Format("2006-01-02"),
		"Amount":          amount.String(),
		"Currency":        currency,
		"SenderName":      c.cfg.SenderName,
		"SenderBIC":       c.cfg.SenderBIC,
		"SenderAccount":   c.cfg.SenderAccount,
		"ReceiverBIC":     destBIC,
		"ReceiverAccount": destAccount,
		"PmtInfID":        pmtInfID,
		"InstrID":         fmt.Sprintf("%s/%s", c.cfg.SenderBIC, refID),
		"EndToEndID":      fmt.Sprintf("%s-%s", c.cfg.SenderAccount, destAccount),
		"Timestamp":       timestamp,
	})
	if err != nil {
		return "", "", err
	}
	return payload, pmtInfID, nil
}
