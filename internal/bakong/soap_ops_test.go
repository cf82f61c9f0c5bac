package bakong

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"obs/reversal-watcher/internal/logging"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func soapTestClient(url string) *Client {
	return NewClient(ClientConfig{
		SOAPURL:         url,
		Username:        "user",
		Password:        "pass",
		SenderBIC:       "TOURKHPP",
		SenderAccount:   "tour-account",
		SenderName:      "OBS",
		CounterpartyBIC: "BKRTKHPP",
		TransactionSize: 50,
		MaxRetries:      1,
		RetryDelay:      time.Millisecond,
	}, &logging.MockLogger{})
}

func TestAcknowledge_SendsPain002(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte("<ok/>"))
	}))
	defer srv.Close()

	result, err := soapTestClient(srv.URL).Acknowledge(context.Background(), AckRequest{
		OriginalMsgID:    "ORIG-1",
		OriginalPmtInfID: "PMT-1",
		Amount:           decimal.NewFromInt(10000),
		Currency:         "KHR",
		DebtorBIC:        "BKRTKHPPXXX",
		CreditorBIC:      "TOURKHPPXXX",
	})
	require.NoError(t, err)
	assert.False(t, result.AlreadyAcknowledged)

	assert.Contains(t, gotBody, "makeAcknowledgement")
	assert.Contains(t, gotBody, "<![CDATA[")
	assert.Contains(t, gotBody, "<OrgnlMsgId>ORIG-1</OrgnlMsgId>")
	assert.Contains(t, gotBody, "<OrgnlPmtInfId>PMT-1</OrgnlPmtInfId>")
	assert.Contains(t, gotBody, `<InstdAmt Ccy="KHR">10000</InstdAmt>`)
	assert.Contains(t, gotBody, "<TxSts>ACSC</TxSts>")
	assert.Contains(t, gotBody, "<web:cm_user_name>user</web:cm_user_name>")
}

func TestAcknowledge_AlreadyHandledFaultIsSuccess(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not found", "Fault: transaction Not Found"},
		{"already acknowledged", "message already acknowledged"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			result, err := soapTestClient(srv.URL).Acknowledge(context.Background(), AckRequest{
				OriginalMsgID: "ORIG-1",
				Amount:        decimal.NewFromInt(1),
				Currency:      "KHR",
			})
			require.NoError(t, err)
			assert.True(t, result.AlreadyAcknowledged)
		})
	}
}

func TestAcknowledge_OtherFaultIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal failure"))
	}))
	defer srv.Close()

	_, err := soapTestClient(srv.URL).Acknowledge(context.Background(), AckRequest{
		OriginalMsgID: "ORIG-1",
		Amount:        decimal.NewFromInt(1),
		Currency:      "KHR",
	})
	assert.Error(t, err)
}

func TestForward_SendsTransferWithExtRef(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte("<ok/>"))
	}))
	defer srv.Close()

	extRef, err := soapTestClient(srv.URL).Forward(context.Background(),
		decimal.RequireFromString("10000"), "KHR", "NBCQKHPP", "hq-account")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(extRef, "TOURKHPP/NBCQKHPP/"))
	assert.Contains(t, gotBody, "makeFullFundTransfer")
	assert.Contains(t, gotBody, "<web:ext_ref>"+extRef+"</web:ext_ref>")
	assert.Contains(t, gotBody, `<InstdAmt Ccy="KHR">10000</InstdAmt>`)
	assert.Contains(t, gotBody, "<BICFI>NBCQKHPP</BICFI>")
	assert.Contains(t, gotBody, "<Id>hq-account</Id>")
	assert.Contains(t, gotBody, "Refund-OBS-")
}

func TestTransferPayload_RefIDIsLastTenDigits(t *testing.T) {
	c := soapTestClient("http://unused")
	now := time.UnixMilli(1750000000123)

	_, extRef, err := c.transferPayload(decimal.NewFromInt(5), "USD", "NBCQKHPP", "acc", now)
	require.NoError(t, err)

	parts := strings.Split(extRef, "/")
	require.Len(t, parts, 3)
	assert.Equal(t, "TOURKHPP", parts[0])
	assert.Equal(t, "NBCQKHPP", parts[1])
	assert.Len(t, parts[2], 10)
	assert.True(t, strings.HasSuffix("1750000000123", parts[2]))
}

func TestReverseTransaction_SendsPain007(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte("<ok/>"))
	}))
	defer srv.Close()

	_, err := soapTestClient(srv.URL).ReverseTransaction(context.Background(),
		decimal.NewFromInt(200), "USD", "ORIG-MSG", "ORIG-PMT", "debtor-acc")
	require.NoError(t, err)

	assert.Contains(t, gotBody, "makeReverseTransaction")
	assert.Contains(t, gotBody, "<OrgnlMsgId>ORIG-MSG</OrgnlMsgId>")
	assert.Contains(t, gotBody, "<OrgnlPmtInfId>ORIG-PMT</OrgnlPmtInfId>")
	assert.Contains(t, gotBody, `<OrgnlInstdAmt Ccy="USD">200</OrgnlInstdAmt>`)
	assert.Contains(t, gotBody, "<BICFI>BKRTKHPP</BICFI>")
}

func TestSOAPStrategy_Fetch(t *testing.T) {
	payload := `&lt;?xml version="1.0"?&gt;&lt;Document&gt;one&lt;/Document&gt;&lt;?xml version="1.0"?&gt;&lt;Document&gt;two&lt;/Document&gt;`
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		_, _ = w.Write([]byte(`<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
  <SOAP-ENV:Body>
    <ns2:getIncomingTransactionResponse xmlns:ns2="http://webservice.nbc.org.kh/">
      <return>` + payload + `</return>
    </ns2:getIncomingTransactionResponse>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`))
	}))
	defer srv.Close()

	strategy := NewSOAPStrategy(soapTestClient(srv.URL), &logging.MockLogger{})

	docs, err := strategy.Fetch(context.Background(), "payee-1")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Contains(t, docs[0], "<Document>one</Document>")
	assert.Contains(t, docs[1], "<Document>two</Document>")

	assert.Contains(t, gotBody, "getIncomingTransaction")
	assert.Contains(t, gotBody, "<web:payee_participant_code>payee-1</web:payee_participant_code>")
	assert.Contains(t, gotBody, "<web:size>50</web:size>")
}

func TestSOAPStrategy_Fetch_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<SOAP-ENV:Envelope xmlns:SOAP-ENV="http://schemas.xmlsoap.org/soap/envelope/">
  <SOAP-ENV:Body>
    <ns2:getIncomingTransactionResponse xmlns:ns2="http://webservice.nbc.org.kh/"/>
  </SOAP-ENV:Body>
</SOAP-ENV:Envelope>`))
	}))
	defer srv.Close()

	strategy := NewSOAPStrategy(soapTestClient(srv.URL), &logging.MockLogger{})

	docs, err := strategy.Fetch(context.Background(), "payee-1")
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestNewFetchStrategy(t *testing.T) {
	client := soapTestClient("http://unused")
	tokens := NewTokenCache("http://unused", "u", "p", 0, &logging.MockLogger{})

	soap, err := NewFetchStrategy(StrategySOAP, client, tokens, "", &logging.MockLogger{})
	require.NoError(t, err)
	assert.IsType(t, &SOAPStrategy{}, soap)

	report, err := NewFetchStrategy(StrategyReport, client, tokens, "http://report", &logging.MockLogger{})
	require.NoError(t, err)
	assert.IsType(t, &ReportStrategy{}, report)

	_, err = NewFetchStrategy("carrier-pigeon", client, tokens, "", &logging.MockLogger{})
	assert.Error(t, err)
}
